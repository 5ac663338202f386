package notify

import "sort"

// BuildPlans resolves a profile's template and recipients against the
// run's documents into zero or more ready-to-send Plans.
//
// A global-scope profile produces at most one plan: every active
// recipient with no store_code, rendered once against runVars;
// recipients tied to a store_code are left out.
//
// A per_store-scope profile produces at most one plan per distinct
// store_code found in documents: a store is skipped if it has no active
// recipient, or if its attach-mode-selected attachments come up empty
// (e.g. AttachPerStorePDF with no pdf document recorded for that
// store) — a plan with a mandatory attachment missing is not sent
// rather than sent empty-handed.
func BuildPlans(profile Profile, template Template, recipients []Recipient, documents []Document,
	runVars map[string]string, perStoreVars map[string]map[string]string) []Plan {
	if !profile.IsActive || !template.IsActive {
		return nil
	}

	switch profile.Scope {
	case ScopeGlobal:
		return buildGlobalPlan(profile, template, recipients, runVars)
	case ScopePerStore:
		return buildPerStorePlans(profile, template, recipients, documents, runVars, perStoreVars)
	default:
		return nil
	}
}

func buildGlobalPlan(profile Profile, template Template, recipients []Recipient, runVars map[string]string) []Plan {
	var to []string
	for _, r := range recipients {
		if r.IsActive && r.StoreCode == "" {
			to = append(to, r.Email)
		}
	}
	if len(to) == 0 {
		return nil
	}
	sort.Strings(to)

	return []Plan{{
		ProfileID: profile.ID,
		Scope:     ScopeGlobal,
		To:        to,
		Subject:   RenderTemplate(template.Subject, runVars),
		Body:      RenderTemplate(template.Body, runVars),
	}}
}

func buildPerStorePlans(profile Profile, template Template, recipients []Recipient, documents []Document,
	runVars map[string]string, perStoreVars map[string]map[string]string) []Plan {
	recipientsByStore := make(map[string][]string)
	for _, r := range recipients {
		if r.IsActive && r.StoreCode != "" {
			recipientsByStore[r.StoreCode] = append(recipientsByStore[r.StoreCode], r.Email)
		}
	}

	docsByStore := make(map[string][]Document)
	var storeOrder []string
	for _, d := range documents {
		if _, seen := docsByStore[d.StoreCode]; !seen {
			storeOrder = append(storeOrder, d.StoreCode)
		}
		docsByStore[d.StoreCode] = append(docsByStore[d.StoreCode], d)
	}
	sort.Strings(storeOrder)

	var plans []Plan
	for _, storeCode := range storeOrder {
		to := recipientsByStore[storeCode]
		if len(to) == 0 {
			continue
		}

		attachments := selectAttachments(profile.AttachMode, docsByStore[storeCode])
		if profile.AttachMode != AttachNone && len(attachments) == 0 {
			continue
		}

		sort.Strings(to)
		vars := mergeVars(runVars, perStoreVars[storeCode])

		plans = append(plans, Plan{
			ProfileID:   profile.ID,
			Scope:       ScopePerStore,
			StoreCode:   storeCode,
			To:          to,
			Subject:     RenderTemplate(template.Subject, vars),
			Body:        RenderTemplate(template.Body, vars),
			Attachments: attachments,
		})
	}
	return plans
}

// selectAttachments applies one attach-mode's resolution rule against a
// store's documents.
func selectAttachments(mode AttachMode, docs []Document) []Attachment {
	switch mode {
	case AttachNone:
		return nil
	case AttachPerStorePDF:
		for _, d := range docs {
			if d.Subtype == "pdf" {
				return []Attachment{{Filename: d.FileName, Path: d.Path}}
			}
		}
		return nil
	default:
		return nil
	}
}

func mergeVars(base, overlay map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}
