package medical

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// ParameterID identifies a lab parameter in the closed vocabulary.
type ParameterID string

const (
	ParamGlucose          ParameterID = "glucose"
	ParamHbA1c            ParameterID = "hba1c"
	ParamTotalCholesterol ParameterID = "total_cholesterol"
	ParamLDL              ParameterID = "ldl"
	ParamHDL              ParameterID = "hdl"
	ParamTriglycerides    ParameterID = "triglycerides"
	ParamSystolicBP       ParameterID = "systolic_bp"
	ParamDiastolicBP      ParameterID = "diastolic_bp"
	ParamCreatinine       ParameterID = "creatinine"
	ParamBUN              ParameterID = "bun"
	ParamEGFR             ParameterID = "egfr"
	ParamUricAcid         ParameterID = "uric_acid"
	ParamALT              ParameterID = "alt"
	ParamAST              ParameterID = "ast"
	ParamALP              ParameterID = "alp"
	ParamBilirubin        ParameterID = "bilirubin"
	ParamAlbumin          ParameterID = "albumin"
	ParamCRP              ParameterID = "crp"
	ParamESR              ParameterID = "esr"
	ParamWBC              ParameterID = "wbc"
	ParamHemoglobin       ParameterID = "hemoglobin"
	ParamPlatelets        ParameterID = "platelets"
	ParamVitaminD         ParameterID = "vitamin_d"
	ParamVitaminB12       ParameterID = "vitamin_b12"
	ParamIron             ParameterID = "iron"
	ParamFerritin         ParameterID = "ferritin"
	ParamTSH              ParameterID = "tsh"
	ParamT3               ParameterID = "t3"
	ParamT4               ParameterID = "t4"
	ParamFreeT4           ParameterID = "free_t4"
	ParamSodium           ParameterID = "sodium"
	ParamPotassium        ParameterID = "potassium"
)

// ScoringCategory is one of the seven health-score categories.
type ScoringCategory string

const (
	CategoryCardiovascular ScoringCategory = "cardiovascular"
	CategoryMetabolic      ScoringCategory = "metabolic"
	CategoryKidney         ScoringCategory = "kidney"
	CategoryLiver          ScoringCategory = "liver"
	CategoryInflammation   ScoringCategory = "inflammation"
	CategoryNutrition      ScoringCategory = "nutrition"
	CategoryHormonal       ScoringCategory = "hormonal"
)

// ParameterInfo describes one vocabulary entry.
type ParameterInfo struct {
	ID          ParameterID
	DisplayName string
	Aliases     []string
	Unit        string
	Range       ReferenceRange
	Panel       string
	Category    ScoringCategory
	LOINC       string
}

// catalog is the authoritative parameter table. Aliases are stored in
// normalized form (see NormalizeName). Only a few entries carry LOINC codes.
var catalog = []ParameterInfo{
	// Metabolic
	{ID: ParamGlucose, DisplayName: "Glucose", Unit: "mg/dL", Range: Between(70, 100), Panel: "Diabetes Panel", Category: CategoryMetabolic, LOINC: "2345-7",
		Aliases: []string{"glucose", "fasting glucose", "blood glucose", "glucose fasting", "fasting blood sugar", "fbs", "blood sugar", "random blood sugar", "rbs", "fasting plasma glucose", "fpg", "plasma glucose"}},
	{ID: ParamHbA1c, DisplayName: "HbA1c", Unit: "%", Range: Between(4, 5.6), Panel: "Diabetes Panel", Category: CategoryMetabolic, LOINC: "4548-4",
		Aliases: []string{"hba1c", "hb a1c", "a1c", "glycated hemoglobin", "glycosylated hemoglobin", "hemoglobin a1c", "glycated haemoglobin"}},

	// Lipids and pressure
	{ID: ParamTotalCholesterol, DisplayName: "Total Cholesterol", Unit: "mg/dL", Range: AtMost(200), Panel: "Lipid Profile", Category: CategoryCardiovascular, LOINC: "2093-3",
		Aliases: []string{"total cholesterol", "cholesterol", "cholesterol total", "serum cholesterol", "tc"}},
	{ID: ParamLDL, DisplayName: "LDL Cholesterol", Unit: "mg/dL", Range: AtMost(100), Panel: "Lipid Profile", Category: CategoryCardiovascular, LOINC: "2089-1",
		Aliases: []string{"ldl", "ldl c", "ldlc", "ldl cholesterol", "low density lipoprotein", "ldl direct"}},
	{ID: ParamHDL, DisplayName: "HDL Cholesterol", Unit: "mg/dL", Range: AtLeast(40), Panel: "Lipid Profile", Category: CategoryCardiovascular, LOINC: "2085-9",
		Aliases: []string{"hdl", "hdl c", "hdlc", "hdl cholesterol", "high density lipoprotein"}},
	{ID: ParamTriglycerides, DisplayName: "Triglycerides", Unit: "mg/dL", Range: AtMost(150), Panel: "Lipid Profile", Category: CategoryCardiovascular, LOINC: "2571-8",
		Aliases: []string{"triglycerides", "triglyceride", "tg", "trigs", "serum triglycerides"}},
	{ID: ParamSystolicBP, DisplayName: "Systolic Blood Pressure", Unit: "mmHg", Range: Between(90, 120), Panel: "Vitals", Category: CategoryCardiovascular, LOINC: "8480-6",
		Aliases: []string{"systolic", "systolic bp", "systolic blood pressure", "sbp"}},
	{ID: ParamDiastolicBP, DisplayName: "Diastolic Blood Pressure", Unit: "mmHg", Range: Between(60, 80), Panel: "Vitals", Category: CategoryCardiovascular, LOINC: "8462-4",
		Aliases: []string{"diastolic", "diastolic bp", "diastolic blood pressure", "dbp"}},

	// Kidney
	{ID: ParamCreatinine, DisplayName: "Creatinine", Unit: "mg/dL", Range: Between(0.6, 1.3), Panel: "Kidney Function", Category: CategoryKidney, LOINC: "2160-0",
		Aliases: []string{"creatinine", "serum creatinine", "creat", "s creatinine"}},
	{ID: ParamBUN, DisplayName: "Blood Urea Nitrogen", Unit: "mg/dL", Range: Between(7, 20), Panel: "Kidney Function", Category: CategoryKidney,
		Aliases: []string{"bun", "blood urea nitrogen", "urea nitrogen", "urea", "blood urea", "serum urea"}},
	{ID: ParamEGFR, DisplayName: "eGFR", Unit: "mL/min/1.73m2", Range: AtLeast(90), Panel: "Kidney Function", Category: CategoryKidney,
		Aliases: []string{"egfr", "gfr", "estimated gfr", "estimated glomerular filtration rate"}},
	{ID: ParamUricAcid, DisplayName: "Uric Acid", Unit: "mg/dL", Range: Between(3.5, 7.2), Panel: "Kidney Function", Category: CategoryKidney,
		Aliases: []string{"uric acid", "serum uric acid", "urate"}},

	// Liver
	{ID: ParamALT, DisplayName: "ALT (SGPT)", Unit: "U/L", Range: Between(7, 56), Panel: "Liver Function", Category: CategoryLiver, LOINC: "1742-6",
		Aliases: []string{"alt", "sgpt", "alt sgpt", "sgpt alt", "alanine aminotransferase", "alanine transaminase"}},
	{ID: ParamAST, DisplayName: "AST (SGOT)", Unit: "U/L", Range: Between(10, 40), Panel: "Liver Function", Category: CategoryLiver,
		Aliases: []string{"ast", "sgot", "ast sgot", "sgot ast", "aspartate aminotransferase", "aspartate transaminase"}},
	{ID: ParamALP, DisplayName: "Alkaline Phosphatase", Unit: "U/L", Range: Between(44, 147), Panel: "Liver Function", Category: CategoryLiver,
		Aliases: []string{"alp", "alkaline phosphatase", "alk phos"}},
	{ID: ParamBilirubin, DisplayName: "Total Bilirubin", Unit: "mg/dL", Range: Between(0.1, 1.2), Panel: "Liver Function", Category: CategoryLiver,
		Aliases: []string{"bilirubin", "total bilirubin", "bilirubin total", "serum bilirubin"}},
	{ID: ParamAlbumin, DisplayName: "Albumin", Unit: "g/dL", Range: Between(3.5, 5.0), Panel: "Liver Function", Category: CategoryLiver,
		Aliases: []string{"albumin", "serum albumin"}},

	// Inflammation and blood count
	{ID: ParamCRP, DisplayName: "C-Reactive Protein", Unit: "mg/L", Range: AtMost(3), Panel: "Inflammation Markers", Category: CategoryInflammation,
		Aliases: []string{"crp", "c reactive protein", "hs crp", "hscrp", "high sensitivity crp"}},
	{ID: ParamESR, DisplayName: "ESR", Unit: "mm/hr", Range: Between(0, 20), Panel: "Inflammation Markers", Category: CategoryInflammation,
		Aliases: []string{"esr", "erythrocyte sedimentation rate", "sed rate"}},
	{ID: ParamWBC, DisplayName: "White Blood Cells", Unit: "x10^3/uL", Range: Between(4, 11), Panel: "Complete Blood Count", Category: CategoryInflammation, LOINC: "6690-2",
		Aliases: []string{"wbc", "wbc count", "white blood cells", "white blood cell count", "total leukocyte count", "tlc", "leukocytes"}},
	{ID: ParamHemoglobin, DisplayName: "Hemoglobin", Unit: "g/dL", Range: Between(12, 17.5), Panel: "Complete Blood Count", Category: CategoryNutrition, LOINC: "718-7",
		Aliases: []string{"hemoglobin", "haemoglobin", "hb", "hgb"}},
	{ID: ParamPlatelets, DisplayName: "Platelets", Unit: "x10^3/uL", Range: Between(150, 450), Panel: "Complete Blood Count", Category: CategoryInflammation,
		Aliases: []string{"platelets", "platelet count", "plt"}},

	// Nutrition
	{ID: ParamVitaminD, DisplayName: "Vitamin D", Unit: "ng/mL", Range: Between(30, 100), Panel: "Vitamins", Category: CategoryNutrition,
		Aliases: []string{"vitamin d", "vit d", "vitamin d3", "25 oh vitamin d", "25 hydroxy vitamin d", "vitamin d 25 hydroxy"}},
	{ID: ParamVitaminB12, DisplayName: "Vitamin B12", Unit: "pg/mL", Range: Between(200, 900), Panel: "Vitamins", Category: CategoryNutrition,
		Aliases: []string{"vitamin b12", "b12", "vit b12", "cobalamin"}},
	{ID: ParamIron, DisplayName: "Serum Iron", Unit: "ug/dL", Range: Between(60, 170), Panel: "Iron Studies", Category: CategoryNutrition,
		Aliases: []string{"iron", "serum iron"}},
	{ID: ParamFerritin, DisplayName: "Ferritin", Unit: "ng/mL", Range: Between(15, 300), Panel: "Iron Studies", Category: CategoryNutrition,
		Aliases: []string{"ferritin", "serum ferritin"}},

	// Thyroid
	{ID: ParamTSH, DisplayName: "TSH", Unit: "mIU/L", Range: Between(0.4, 4.5), Panel: "Thyroid Profile", Category: CategoryHormonal, LOINC: "3016-3",
		Aliases: []string{"tsh", "thyroid stimulating hormone", "ultrasensitive tsh"}},
	{ID: ParamT3, DisplayName: "Total T3", Unit: "ng/dL", Range: Between(80, 200), Panel: "Thyroid Profile", Category: CategoryHormonal,
		Aliases: []string{"t3", "total t3", "triiodothyronine"}},
	{ID: ParamT4, DisplayName: "Total T4", Unit: "ug/dL", Range: Between(4.5, 12), Panel: "Thyroid Profile", Category: CategoryHormonal,
		Aliases: []string{"t4", "total t4", "thyroxine", "total thyroxine"}},
	{ID: ParamFreeT4, DisplayName: "Free T4", Unit: "ng/dL", Range: Between(0.8, 1.8), Panel: "Thyroid Profile", Category: CategoryHormonal, LOINC: "3024-7",
		Aliases: []string{"free t4", "ft4", "free thyroxine"}},

	// Electrolytes
	{ID: ParamSodium, DisplayName: "Sodium", Unit: "mmol/L", Range: Between(135, 145), Panel: "Electrolytes", Category: CategoryKidney,
		Aliases: []string{"sodium", "serum sodium", "na"}},
	{ID: ParamPotassium, DisplayName: "Potassium", Unit: "mmol/L", Range: Between(3.5, 5.1), Panel: "Electrolytes", Category: CategoryKidney,
		Aliases: []string{"potassium", "serum potassium", "k"}},
}

// minContainedAlias is the shortest alias that may match inside a longer name.
const minContainedAlias = 3

// analyteModifiers name a different measurement when they sit next to an
// alias: "Mean Corpuscular Hemoglobin" is not hemoglobin and "Non-HDL
// Cholesterol" is not HDL.
var analyteModifiers = map[string]bool{
	"mean": true, "corpuscular": true, "concentration": true,
	"non": true, "vldl": true, "ratio": true, "index": true,
	"free": true, "direct": true, "indirect": true, "conjugated": true, "unconjugated": true,
	"urine": true, "urinary": true, "clearance": true,
	"binding": true, "capacity": true, "saturation": true,
	"antibody": true, "antibodies": true, "receptor": true,
}

type aliasEntry struct {
	alias string
	id    ParameterID
}

var (
	byID        = map[ParameterID]*ParameterInfo{}
	exactAlias  = map[string]ParameterID{}
	containable []aliasEntry // longest first
	folder      = cases.Fold()
)

func init() {
	for i := range catalog {
		info := &catalog[i]
		byID[info.ID] = info
		for _, a := range info.Aliases {
			exactAlias[a] = info.ID
			if len(a) >= minContainedAlias {
				containable = append(containable, aliasEntry{alias: a, id: info.ID})
			}
		}
	}
	sort.SliceStable(containable, func(i, j int) bool {
		return len(containable[i].alias) > len(containable[j].alias)
	})
}

// NormalizeName folds a free-text parameter name into alias form:
// NFKC, case-folded, punctuation replaced by spaces, whitespace collapsed.
func NormalizeName(name string) string {
	s := folder.String(norm.NFKC.String(name))
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Resolve maps a free-text parameter name to the vocabulary. An exact alias
// match wins; otherwise the longest alias appearing as whole words inside
// the name is used, unless the remaining words turn it into another analyte.
func Resolve(name string) (*ParameterInfo, bool) {
	n := NormalizeName(name)
	if n == "" {
		return nil, false
	}
	if id, ok := exactAlias[n]; ok {
		return byID[id], true
	}
	padded := " " + n + " "
	for _, e := range containable {
		needle := " " + e.alias + " "
		if !strings.Contains(padded, needle) {
			continue
		}
		if modified(strings.Replace(padded, needle, " ", 1)) {
			return nil, false
		}
		return byID[e.id], true
	}
	return nil, false
}

func modified(rest string) bool {
	for _, w := range strings.Fields(rest) {
		if analyteModifiers[w] {
			return true
		}
	}
	return false
}

// Lookup returns the vocabulary entry for id.
func Lookup(id ParameterID) (*ParameterInfo, bool) {
	info, ok := byID[id]
	return info, ok
}

// equivalentUnits pairs canonical unit spellings that share a scale.
var equivalentUnits = map[string]string{
	"iu/l":  "u/l",
	"meq/l": "mmol/l",
}

// AcceptsUnit reports whether a value reported in unit can be compared with
// the entry's default range. An empty unit is assumed to be the default one.
func (p *ParameterInfo) AcceptsUnit(unit string) bool {
	if unit == "" {
		return true
	}
	fold := func(u string) string {
		u = strings.ToLower(strings.TrimSpace(u))
		if eq, ok := equivalentUnits[u]; ok {
			return eq
		}
		return u
	}
	return fold(unit) == fold(p.Unit)
}

// Parameters returns every vocabulary entry in catalog order.
func Parameters() []ParameterInfo {
	out := make([]ParameterInfo, len(catalog))
	copy(out, catalog)
	return out
}
