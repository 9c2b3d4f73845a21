package schema

// Record types shipped with medscribe
const (
	TypeMedicalReview = "medical_review"
	TypeScreening     = "screening"
)

var statusChoices = []string{"Never", "Former", "Current"}

// Builtin returns the built-in schema definitions
func Builtin() []Definition {
	return []Definition{
		medicalReviewV1(),
		screeningV1(),
	}
}

func medicalReviewV1() Definition {
	return Definition{
		Type:    TypeMedicalReview,
		Version: 1,
		Prefix:  "REV",
		Title:   "Medical Review",
		Fields: []FieldSpec{
			{Name: "diagnosis", Kind: KindString, Description: "working or confirmed diagnosis"},
			{Name: "biometrics", Kind: KindObject, Optional: true, Children: []FieldSpec{
				{Name: "height", Kind: KindNumber, Optional: true, Unit: "cm"},
				{Name: "weight", Kind: KindNumber, Optional: true, Unit: "kg"},
				{Name: "bmi", Kind: KindNumber, Optional: true, Computed: true, Description: "weight (kg) / height (m)^2"},
				{Name: "waistCircumference", Kind: KindNumber, Optional: true, Unit: "cm"},
			}},
			{Name: "bgAndHtn", Kind: KindObject, Optional: true, Children: []FieldSpec{
				{Name: "bloodGlucose", Kind: KindNumber, Optional: true, Unit: "mg/dL"},
				{Name: "systolicBP", Kind: KindNumber, Optional: true, Unit: "mmHg"},
				{Name: "diastolicBP", Kind: KindNumber, Optional: true, Unit: "mmHg"},
			}},
			{Name: "lifestyle", Kind: KindObject, Optional: true, Children: []FieldSpec{
				{Name: "smokingStatus", Kind: KindEnum, Optional: true, Enum: statusChoices},
				{Name: "alcoholStatus", Kind: KindEnum, Optional: true, Enum: statusChoices},
				{Name: "dietNutrition", Kind: KindString, Optional: true},
				{Name: "physicalActivity", Kind: KindString, Optional: true},
			}},
			{Name: "examination", Kind: KindObject, Optional: true, Children: []FieldSpec{
				{Name: "chiefComplaints", Kind: KindString, Optional: true},
				{Name: "physicalExamination", Kind: KindString, Optional: true},
			}},
			{Name: "physicianNotes", Kind: KindString, Optional: true},
		},
	}
}

func screeningV1() Definition {
	return Definition{
		Type:    TypeScreening,
		Version: 1,
		Prefix:  "SCR",
		Title:   "Screening",
		Fields: []FieldSpec{
			{Name: "patientId", Kind: KindString, Description: "patient identifier, PT- prefixed"},
			{Name: "screeningType", Kind: KindEnum, Enum: []string{"Diabetes", "Hypertension", "Cardiovascular", "General"}},
			{Name: "vitals", Kind: KindObject, Optional: true, Children: []FieldSpec{
				{Name: "heightCm", Kind: KindNumber, Optional: true, Unit: "cm"},
				{Name: "heightIn", Kind: KindNumber, Optional: true, Unit: "in", Description: "only if stated in inches"},
				{Name: "weightKg", Kind: KindNumber, Optional: true, Unit: "kg"},
				{Name: "weightLb", Kind: KindNumber, Optional: true, Unit: "lb", Description: "only if stated in pounds"},
				{Name: "bmi", Kind: KindNumber, Optional: true, Computed: true, Description: "weight (kg) / height (m)^2"},
				{Name: "temperatureC", Kind: KindNumber, Optional: true, Unit: "°C"},
			}},
			{Name: "history", Kind: KindObject, Optional: true, Children: []FieldSpec{
				{Name: "lastScreeningDate", Kind: KindString, Optional: true, Format: FormatDate},
				{Name: "daysSinceLastScreening", Kind: KindNumber, Optional: true, Computed: true, Unit: "days"},
				{Name: "familyHistory", Kind: KindBoolean, Optional: true, Description: "family history of the screened condition"},
				{Name: "smoker", Kind: KindBoolean, Optional: true},
			}},
			{Name: "risk", Kind: KindObject, Optional: true, Children: []FieldSpec{
				{Name: "fastingGlucose", Kind: KindNumber, Optional: true, Unit: "mg/dL"},
				{Name: "riskLevel", Kind: KindEnum, Optional: true, Enum: []string{"Low", "Moderate", "High"}},
			}},
			{Name: "referral", Kind: KindObject, Optional: true, Children: []FieldSpec{
				{Name: "needed", Kind: KindBoolean, Optional: true},
				{Name: "notes", Kind: KindString, Optional: true},
			}},
			{Name: "notes", Kind: KindString, Optional: true},
		},
	}
}
