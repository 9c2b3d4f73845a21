package form

import (
	"fmt"

	"github.com/ppiankov/medscribe/internal/schema"
)

// Widget is the kind of input a form field renders as
type Widget string

const (
	WidgetText       Widget = "text"
	WidgetNumber     Widget = "number"
	WidgetChoice     Widget = "choice"
	WidgetCheckbox   Widget = "checkbox"
	WidgetJSON       Widget = "json"
	WidgetTranscript Widget = "transcript"
)

// FieldDef places one record leaf (or a synthetic field) on a form
type FieldDef struct {
	Name   string `json:"name"`
	Label  string `json:"label"`
	Path   string `json:"path,omitempty"` // empty for json and transcript widgets
	Widget Widget `json:"widget"`
}

var layouts = map[string][]FieldDef{
	schema.TypeMedicalReview: {
		{Name: "diagnosis", Label: "Diagnosis", Path: "diagnosis", Widget: WidgetText},
		{Name: "height", Label: "Height (cm)", Path: "biometrics.height", Widget: WidgetNumber},
		{Name: "weight", Label: "Weight (kg)", Path: "biometrics.weight", Widget: WidgetNumber},
		{Name: "bmi", Label: "BMI", Path: "biometrics.bmi", Widget: WidgetNumber},
		{Name: "waist_circumference", Label: "Waist Circumference (cm)", Path: "biometrics.waistCircumference", Widget: WidgetNumber},
		{Name: "blood_glucose", Label: "Blood Glucose (mg/dL)", Path: "bgAndHtn.bloodGlucose", Widget: WidgetNumber},
		{Name: "systolic_bp", Label: "Systolic BP (mmHg)", Path: "bgAndHtn.systolicBP", Widget: WidgetNumber},
		{Name: "diastolic_bp", Label: "Diastolic BP (mmHg)", Path: "bgAndHtn.diastolicBP", Widget: WidgetNumber},
		{Name: "smoking_status", Label: "Smoking Status", Path: "lifestyle.smokingStatus", Widget: WidgetChoice},
		{Name: "alcohol_status", Label: "Alcohol Status", Path: "lifestyle.alcoholStatus", Widget: WidgetChoice},
		{Name: "diet_nutrition", Label: "Diet and Nutrition", Path: "lifestyle.dietNutrition", Widget: WidgetText},
		{Name: "physical_activity", Label: "Physical Activity", Path: "lifestyle.physicalActivity", Widget: WidgetText},
		{Name: "chief_complaints", Label: "Chief Complaints", Path: "examination.chiefComplaints", Widget: WidgetText},
		{Name: "physical_examination", Label: "Physical Examination", Path: "examination.physicalExamination", Widget: WidgetText},
		{Name: "physician_notes", Label: "Physician Notes", Path: "physicianNotes", Widget: WidgetText},
		{Name: "json", Label: "Extracted Data", Widget: WidgetJSON},
		{Name: "transcript", Label: "Transcript", Widget: WidgetTranscript},
	},
	schema.TypeScreening: {
		{Name: "patient_id", Label: "Patient ID", Path: "patientId", Widget: WidgetText},
		{Name: "screening_type", Label: "Screening Type", Path: "screeningType", Widget: WidgetChoice},
		{Name: "height_cm", Label: "Height (cm)", Path: "vitals.heightCm", Widget: WidgetNumber},
		{Name: "weight_kg", Label: "Weight (kg)", Path: "vitals.weightKg", Widget: WidgetNumber},
		{Name: "bmi", Label: "BMI", Path: "vitals.bmi", Widget: WidgetNumber},
		{Name: "temperature_c", Label: "Temperature (°C)", Path: "vitals.temperatureC", Widget: WidgetNumber},
		{Name: "last_screening_date", Label: "Last Screening Date", Path: "history.lastScreeningDate", Widget: WidgetText},
		{Name: "days_since_last_screening", Label: "Days Since Last Screening", Path: "history.daysSinceLastScreening", Widget: WidgetNumber},
		{Name: "family_history", Label: "Family History", Path: "history.familyHistory", Widget: WidgetCheckbox},
		{Name: "smoker", Label: "Smoker", Path: "history.smoker", Widget: WidgetCheckbox},
		{Name: "fasting_glucose", Label: "Fasting Glucose (mg/dL)", Path: "risk.fastingGlucose", Widget: WidgetNumber},
		{Name: "risk_level", Label: "Risk Level", Path: "risk.riskLevel", Widget: WidgetChoice},
		{Name: "referral_needed", Label: "Referral Needed", Path: "referral.needed", Widget: WidgetCheckbox},
		{Name: "referral_notes", Label: "Referral Notes", Path: "referral.notes", Widget: WidgetText},
		{Name: "notes", Label: "Notes", Path: "notes", Widget: WidgetText},
		{Name: "json", Label: "Extracted Data", Widget: WidgetJSON},
		{Name: "transcript", Label: "Transcript", Widget: WidgetTranscript},
	},
}

// widgetKinds lists the leaf kind each path-bound widget can display
var widgetKinds = map[Widget]schema.Kind{
	WidgetText:     schema.KindString,
	WidgetNumber:   schema.KindNumber,
	WidgetChoice:   schema.KindEnum,
	WidgetCheckbox: schema.KindBoolean,
}

func init() {
	if err := CheckLayouts(schema.Default()); err != nil {
		panic(err)
	}
}

// Layout returns a copy of the field layout for recordType
func Layout(recordType string) ([]FieldDef, bool) {
	defs, ok := layouts[recordType]
	if !ok {
		return nil, false
	}
	return append([]FieldDef(nil), defs...), true
}

// CheckLayouts verifies every layout against the latest schema of its record type
func CheckLayouts(registry *schema.Registry) error {
	for recordType, defs := range layouts {
		s, err := registry.Get(recordType)
		if err != nil {
			return fmt.Errorf("form layout %s: %w", recordType, err)
		}

		names := make(map[string]bool, len(defs))
		for _, d := range defs {
			if names[d.Name] {
				return fmt.Errorf("form layout %s: duplicate field %q", recordType, d.Name)
			}
			names[d.Name] = true

			if d.Widget == WidgetJSON || d.Widget == WidgetTranscript {
				if d.Path != "" {
					return fmt.Errorf("form layout %s: %s widget %q cannot bind a path", recordType, d.Widget, d.Name)
				}
				continue
			}

			f, ok := s.Field(d.Path)
			if !ok || !f.IsLeaf() {
				return fmt.Errorf("form layout %s: field %q binds unknown leaf %q", recordType, d.Name, d.Path)
			}
			want, ok := widgetKinds[d.Widget]
			if !ok {
				return fmt.Errorf("form layout %s: field %q has unknown widget %q", recordType, d.Name, d.Widget)
			}
			if f.Kind != want {
				return fmt.Errorf("form layout %s: %s widget %q cannot show %s leaf %q", recordType, d.Widget, d.Name, f.Kind, d.Path)
			}
		}
	}
	return nil
}
