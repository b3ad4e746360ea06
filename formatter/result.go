package formatter

type ViolatedFormatter struct{}

func (f *ViolatedFormatter) ResultTemplate() string {
	return `{{header .Verdict .Property .Path}}
{{- if .Counterexample }}
{{steps .Counterexample -}}
{{- end }}
{{note "found in round %d" .Round}}

`
}

type SafeFormatter struct{}

func (f *SafeFormatter) ResultTemplate() string {
	return `{{header .Verdict .Property .Path}}
{{- if .Precision }}
{{facts .Precision -}}
{{- end }}
{{note "proved in round %d" .Round}}

`
}

type UnknownFormatter struct{}

func (f *UnknownFormatter) ResultTemplate() string {
	return `{{header .Verdict .Property .Path}}
{{note "reason: %s" .Reason}}
{{- if .Error }}
{{note "error: %s" .Error}}
{{- end }}

`
}
