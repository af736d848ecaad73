package reference

import "github.com/finsift/finsift/internal/model"

// DefaultRules returns the built-in reference rule set. Rules are
// deliberately conservative: anything ambiguous should fall through to
// the AI phase rather than be accepted with inflated confidence.
func DefaultRules() []model.ReferenceRule {
	return []model.ReferenceRule{
		// Work expense rules - highest priority.
		{
			Name:               "Parking",
			Category:           "Car & Travel",
			TaxCategory:        "work_travel",
			Keywords:           []string{"PARKING"},
			MerchantFragments:  []string{"WILSON PARKING", "SECURE PARKING", "CARE PARK"},
			Priority:           95,
			BaseConfidence:     0.9,
			BusinessUsePercent: 100,
			IsTaxDeductible:    true,
			IsActive:           true,
		},
		{
			Name:               "Tolls",
			Category:           "Car & Travel",
			TaxCategory:        "work_travel",
			Keywords:           []string{"TOLL", "LINKT", "E-TOLL"},
			Priority:           90,
			BaseConfidence:     0.85,
			BusinessUsePercent: 80,
			IsTaxDeductible:    true,
			IsActive:           true,
		},
		{
			Name:               "Fuel",
			Category:           "Car & Travel",
			TaxCategory:        "vehicle",
			Keywords:           []string{"FUEL", "PETROL"},
			MerchantFragments:  []string{"BP ", "SHELL", "CALTEX", "AMPOL", "7-ELEVEN FUEL"},
			Priority:           85,
			BaseConfidence:     0.8,
			BusinessUsePercent: 50,
			IsTaxDeductible:    true,
			IsActive:           true,
		},
		{
			Name:               "Rideshare & Taxi",
			Category:           "Car & Travel",
			TaxCategory:        "work_travel",
			Keywords:           []string{"TAXI", "CABCHARGE"},
			MerchantFragments:  []string{"UBER TRIP", "DIDI", "OLA"},
			Priority:           85,
			BaseConfidence:     0.8,
			BusinessUsePercent: 70,
			IsTaxDeductible:    true,
			IsActive:           true,
		},
		{
			Name:               "Software Subscriptions",
			Category:           "Software & Services",
			TaxCategory:        "tools_equipment",
			Keywords:           []string{"SUBSCRIPTION", "SOFTWARE", "SAAS"},
			MerchantFragments:  []string{"GITHUB", "JETBRAINS", "ADOBE", "ATLASSIAN", "MICROSOFT 365", "GOOGLE WORKSPACE"},
			Priority:           90,
			BaseConfidence:     0.9,
			BusinessUsePercent: 100,
			IsTaxDeductible:    true,
			IsActive:           true,
		},
		{
			Name:               "Phone & Internet",
			Category:           "Utilities",
			TaxCategory:        "home_office",
			Keywords:           []string{"MOBILE", "BROADBAND", "INTERNET"},
			MerchantFragments:  []string{"TELSTRA", "OPTUS", "VODAFONE", "AUSSIE BROADBAND"},
			Priority:           80,
			BaseConfidence:     0.8,
			BusinessUsePercent: 50,
			IsTaxDeductible:    true,
			IsActive:           true,
		},
		{
			Name:               "Professional Development",
			Category:           "Education",
			TaxCategory:        "self_education",
			Keywords:           []string{"COURSE", "TRAINING", "CONFERENCE", "SEMINAR"},
			MerchantFragments:  []string{"UDEMY", "COURSERA", "PLURALSIGHT", "O'REILLY"},
			Priority:           80,
			BaseConfidence:     0.85,
			BusinessUsePercent: 100,
			IsTaxDeductible:    true,
			IsActive:           true,
		},
		{
			Name:               "Professional Memberships",
			Category:           "Professional Fees",
			TaxCategory:        "union_professional",
			Keywords:           []string{"MEMBERSHIP", "UNION", "PROFESSIONAL BODY"},
			Priority:           75,
			BaseConfidence:     0.8,
			BusinessUsePercent: 100,
			IsTaxDeductible:    true,
			IsActive:           true,
		},
		{
			Name:               "Charitable Donations",
			Category:           "Donations",
			TaxCategory:        "gifts_donations",
			Keywords:           []string{"DONATION", "CHARITY"},
			MerchantFragments:  []string{"RED CROSS", "SALVATION ARMY", "WORLD VISION"},
			Priority:           85,
			BaseConfidence:     0.9,
			BusinessUsePercent: 100,
			IsTaxDeductible:    true,
			IsActive:           true,
		},
		{
			Name:               "Tax Agent Fees",
			Category:           "Professional Fees",
			TaxCategory:        "tax_affairs",
			Keywords:           []string{"TAX AGENT", "ACCOUNTANT", "BOOKKEEPING"},
			Priority:           85,
			BaseConfidence:     0.9,
			BusinessUsePercent: 100,
			IsTaxDeductible:    true,
			IsActive:           true,
		},

		// Income rules.
		{
			Name:           "Salary & Wages",
			Category:       "Income",
			TaxCategory:    "salary",
			Keywords:       []string{"SALARY", "PAYROLL", "WAGES", "DIRECT DEP"},
			Priority:       95,
			BaseConfidence: 0.95,
			IsActive:       true,
		},
		{
			Name:           "Interest Income",
			Category:       "Income",
			TaxCategory:    "interest",
			Keywords:       []string{"INTEREST", "DIVIDEND"},
			Priority:       85,
			BaseConfidence: 0.85,
			IsActive:       true,
		},

		// Personal spending rules: matched so they are not sent to the
		// AI phase, but never deductible.
		{
			Name:              "Groceries",
			Category:          "Groceries",
			Keywords:          []string{"GROCERY", "SUPERMARKET"},
			MerchantFragments: []string{"WOOLWORTHS", "COLES", "ALDI", "IGA"},
			Priority:          70,
			BaseConfidence:    0.9,
			IsActive:          true,
		},
		{
			Name:              "Dining & Takeaway",
			Category:          "Dining",
			Keywords:          []string{"RESTAURANT", "CAFE", "TAKEAWAY"},
			MerchantFragments: []string{"MCDONALDS", "UBER EATS", "DELIVEROO", "DOMINOS"},
			Priority:          65,
			BaseConfidence:    0.85,
			IsActive:          true,
		},
		{
			Name:              "Streaming & Entertainment",
			Category:          "Entertainment",
			MerchantFragments: []string{"NETFLIX", "SPOTIFY", "DISNEY PLUS", "STAN.COM"},
			Priority:          65,
			BaseConfidence:    0.9,
			IsActive:          true,
		},
		{
			Name:           "Rent & Mortgage",
			Category:       "Housing",
			Keywords:       []string{"RENT", "MORTGAGE"},
			Priority:       70,
			BaseConfidence: 0.85,
			IsActive:       true,
		},
	}
}
