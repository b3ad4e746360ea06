package formatter

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/fatih/color"

	"github.com/gnolang/cegar/internal/schedule"
	tt "github.com/gnolang/cegar/internal/types"
	"github.com/gnolang/cegar/verify"
)

var (
	violatedStyle = color.New(color.FgRed, color.Bold)
	safeStyle     = color.New(color.FgGreen, color.Bold)
	unknownStyle  = color.New(color.FgHiYellow, color.Bold)
	propertyStyle = color.New(color.FgYellow, color.Bold)
	fileStyle     = color.New(color.FgCyan, color.Bold)
	lineStyle     = color.New(color.FgHiBlue, color.Bold)
	noteStyle     = color.New(color.FgWhite)
)

// resultFormatter supplies the template used for one kind of verdict.
type resultFormatter interface {
	ResultTemplate() string
}

func getResultFormatter(v tt.Verdict) resultFormatter {
	switch v {
	case tt.VerdictViolated:
		return &ViolatedFormatter{}
	case tt.VerdictSafe:
		return &SafeFormatter{}
	default:
		return &UnknownFormatter{}
	}
}

// ResultData is the template input for one property.
type ResultData struct {
	Path           string
	Task           string
	Property       string
	Verdict        string
	Reason         string
	Error          string
	Round          int
	Counterexample []string
	Precision      []PrecisionLine
}

// PrecisionLine holds the facts tracked at one location.
type PrecisionLine struct {
	Location string
	Facts    []string
}

// FormatReport renders every property result of rep followed by a summary.
func FormatReport(rep verify.TaskReport) string {
	var b strings.Builder
	for _, p := range rep.Properties {
		b.WriteString(buildResult(rep, p, getResultFormatter(p.Verdict)))
	}
	b.WriteString(summary(rep.Report))
	return b.String()
}

func buildResult(rep verify.TaskReport, p schedule.PropertyResult, f resultFormatter) string {
	data := ResultData{
		Path:           rep.Path,
		Task:           rep.Task,
		Property:       p.Name,
		Verdict:        p.Verdict.String(),
		Reason:         string(p.Reason),
		Error:          p.Error,
		Round:          p.Round,
		Counterexample: p.Counterexample,
		Precision:      precisionLines(p.Precision),
	}

	funcMap := template.FuncMap{
		"header": header,
		"steps":  steps,
		"facts":  facts,
		"note":   note,
	}

	tmpl := template.Must(template.New("result").Funcs(funcMap).Parse(f.ResultTemplate()))
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Sprintf("Error formatting result: %v", err)
	}
	return buf.String()
}

func precisionLines(m map[string][]string) []PrecisionLine {
	locs := make([]string, 0, len(m))
	for l := range m {
		locs = append(locs, l)
	}
	sort.Strings(locs)
	out := make([]PrecisionLine, 0, len(locs))
	for _, l := range locs {
		out = append(out, PrecisionLine{Location: l, Facts: m[l]})
	}
	return out
}

// utils functions used in the text templates

func header(verdict, property, path string) string {
	var s string
	switch verdict {
	case tt.VerdictViolated.String():
		s = violatedStyle.Sprint("violated: ")
	case tt.VerdictSafe.String():
		s = safeStyle.Sprint("safe: ")
	default:
		s = unknownStyle.Sprint("unknown: ")
	}
	s += propertyStyle.Sprintf("%s\n", property)
	s += lineStyle.Sprint("  --> ") + fileStyle.Sprint(path)
	return s
}

func steps(lines []string) string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = lineStyle.Sprintf("%4d | ", i+1) + l
	}
	return strings.Join(out, "\n")
}

func facts(lines []PrecisionLine) string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = lineStyle.Sprint("     | ") + fileStyle.Sprint(l.Location) + ": " + strings.Join(l.Facts, ", ")
	}
	return strings.Join(out, "\n")
}

func note(format string, args ...any) string {
	return lineStyle.Sprint("     = ") + noteStyle.Sprintf(format, args...)
}

func summary(rep *schedule.Report) string {
	if rep == nil {
		return ""
	}
	v, s, u := rep.Counts()
	var style *color.Color
	switch rep.Overall() {
	case "FALSE":
		style = violatedStyle
	case "TRUE":
		style = safeStyle
	default:
		style = unknownStyle
	}
	return fmt.Sprintf("%s %d violated, %d satisfied, %d unknown (%d rounds)\n",
		style.Sprintf("Verification result: %s.", rep.Overall()), v, s, u, rep.Rounds)
}
