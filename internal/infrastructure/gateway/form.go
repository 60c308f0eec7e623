// Package gateway renders the browser-facing artifacts of a payment
// dispatch. A hosted gateway only needs a redirect URL; a form-post gateway
// needs a page that re-submits the signed fields to the provider the way a
// real payment form would.
package gateway

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"

	"github.com/jerseyarena/storefront/internal/infrastructure/storeapi"
)

// autoSubmitPage posts every signed field to the gateway as soon as it
// loads, with a visible fallback button for clients without scripting.
const autoSubmitPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Redirecting to payment</title></head>
<body onload="document.getElementById('gateway-form').submit()">
<p>Redirecting you to the payment provider&hellip;</p>
<form id="gateway-form" method="POST" action="{{.TargetURL}}">
{{- range .Fields}}
<input type="hidden" name="{{.Name}}" value="{{.Value}}">
{{- end}}
<noscript><button type="submit">Continue to payment</button></noscript>
</form>
</body>
</html>
`

var formTemplate = template.Must(template.New("autosubmit").Parse(autoSubmitPage))

type formField struct {
	Name  string
	Value string
}

// RenderAutoSubmitForm renders the auto-submitting payment form for a
// form-post gateway payload. Fields are emitted in sorted order so the
// output is deterministic, and all values are HTML-escaped by the template.
func RenderAutoSubmitForm(payload *storeapi.FormPayload) (string, error) {
	if payload == nil || payload.TargetURL == "" {
		return "", fmt.Errorf("gateway: form payload missing target url")
	}

	fields := make([]formField, 0, len(payload.Fields))
	for name, value := range payload.Fields {
		fields = append(fields, formField{Name: name, Value: value})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })

	var buf bytes.Buffer
	err := formTemplate.Execute(&buf, struct {
		TargetURL string
		Fields    []formField
	}{TargetURL: payload.TargetURL, Fields: fields})
	if err != nil {
		return "", fmt.Errorf("gateway: failed to render form: %w", err)
	}
	return buf.String(), nil
}
