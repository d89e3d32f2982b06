package embed

import "github.com/sells-group/site-audit/internal/model"

// referenceTexts holds one canonical description per industry. Changing a
// text requires bumping the cache version so stored vectors are refreshed.
var referenceTexts = map[string]string{
	model.IndustryRetail:        "online store selling clothing, shoes, furniture, electronics and home goods with shopping cart, checkout, free shipping and easy returns",
	model.IndustrySoftware:      "software platform for teams with cloud hosting, developer api, integrations, analytics dashboard, pricing plans and free trial",
	model.IndustryFinance:       "bank offering checking accounts, savings, loans, mortgages, credit cards, investing, insurance and wealth management services",
	model.IndustryHealthcare:    "healthcare provider with doctors, clinics and hospitals offering patient care, appointments, medical services, pharmacy and therapy",
	model.IndustryEducation:     "university and school offering courses, degrees and programs for students with admissions, tuition, faculty and campus life",
	model.IndustryGovernment:    "official government agency providing public services, permits, regulations, forms and information for citizens and residents",
	model.IndustryTravel:        "travel booking for flights, hotels, resorts, vacation packages, cruises, tours and destinations around the world",
	model.IndustryRealEstate:    "real estate agency with homes for sale, property listings, apartments for rent, realtors and mortgage guidance",
	model.IndustryFood:          "restaurant and cafe with menu, recipes, online ordering, delivery, catering, reservations and fresh local ingredients",
	model.IndustryAutomotive:    "car dealership selling new and used vehicles and trucks with test drives, financing, parts, tires and service center",
	model.IndustryLegal:         "law firm with experienced attorneys and lawyers handling litigation, personal injury, business law and free consultations",
	model.IndustryMedia:         "news and media publisher with breaking news, magazine articles, videos, podcasts, opinion and entertainment coverage",
	model.IndustryManufacturing: "industrial manufacturer producing machinery, precision components and oem parts in our factory with fabrication capabilities",
	model.IndustryNonprofit:     "nonprofit charity foundation with a mission to help communities, accepting donations, volunteers and fundraising support",
}

// ReferenceText returns the canonical text for an industry.
func ReferenceText(industry string) (string, bool) {
	t, ok := referenceTexts[industry]
	return t, ok
}
