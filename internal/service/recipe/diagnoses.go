package recipe

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/pharmacy-api/internal/model"
)

// minDiagnosisLength is the shortest free-text token kept as a diagnosis.
const minDiagnosisLength = 3

// SplitDiagnoses splits comma separated text into trimmed names, dropping
// blanks and tokens shorter than three characters.
func SplitDiagnoses(text string) []string {
	var out []string
	for _, token := range strings.Split(text, ",") {
		token = strings.TrimSpace(token)
		if len([]rune(token)) < minDiagnosisLength {
			continue
		}
		out = append(out, token)
	}
	return out
}

// SynthesizeDiagnoses builds the diagnosis children of a recipe. Structured
// entries come first, then selected names, then free-text tokens. Names are
// deduplicated ignoring case with the first spelling kept. The first diagnosis
// is primary; dates default to the recipe's creation date.
func SynthesizeDiagnoses(req *model.RecipeRequest, now time.Time) []model.Diagnosis {
	seen := make(map[string]struct{})
	var out []model.Diagnosis

	add := func(d model.Diagnosis) {
		d.Name = strings.TrimSpace(d.Name)
		if len([]rune(d.Name)) < minDiagnosisLength {
			return
		}
		key := strings.ToLower(d.Name)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}

		d.ID = uuid.New()
		d.IsPrimary = len(out) == 0
		if d.DiagnosisDate == nil || d.DiagnosisDate.IsZero() {
			d.DiagnosisDate = model.DatePtr(req.CreationDate)
		}
		d.CreatedAt = now
		d.UpdatedAt = now
		out = append(out, d)
	}

	for _, in := range req.Diagnoses {
		add(model.Diagnosis{
			ICD10Code:     strings.TrimSpace(in.ICD10Code),
			Name:          in.Name,
			Description:   in.Description,
			DiagnosisDate: in.DiagnosisDate,
			Severity:      in.Severity,
			Notes:         in.Notes,
		})
	}
	for _, name := range req.SelectedDiagnoses {
		add(model.Diagnosis{Name: name})
	}
	for _, name := range SplitDiagnoses(req.Diagnosis) {
		add(model.Diagnosis{Name: name})
	}
	return out
}

// Summary is the legacy free-text diagnosis column derived from the children.
func Summary(diagnoses []model.Diagnosis) string {
	names := make([]string, len(diagnoses))
	for i, d := range diagnoses {
		names[i] = d.Name
	}
	return strings.Join(names, ", ")
}

// Options merges known diagnosis names with the tokens of free-text
// summaries, deduplicated ignoring case and sorted case-insensitively.
func Options(names, summaries []string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}

	for _, n := range names {
		add(n)
	}
	for _, s := range summaries {
		for _, n := range SplitDiagnoses(s) {
			add(n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	return out
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
