package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderTemplateSubstitutesKnownVarsAndLeavesUnknownAlone(t *testing.T) {
	out := RenderTemplate("Run {{run_id}} for {{store_code}} finished as {{missing}}", map[string]string{
		"run_id":     "abc-123",
		"store_code": "A668",
	})

	assert.Equal(t, "Run abc-123 for A668 finished as {{missing}}", out)
}

func TestBuildPlansGlobalScopeCombinesAllActiveRecipients(t *testing.T) {
	profile := Profile{ID: 1, PipelineName: "TD", Scope: ScopeGlobal, AttachMode: AttachNone, IsActive: true}
	template := Template{ProfileID: 1, Subject: "TD run {{run_id}}", Body: "{{summary}}", IsActive: true}
	recipients := []Recipient{
		{ProfileID: 1, Email: "ops@example.test", IsActive: true},
		{ProfileID: 1, Email: "disabled@example.test", IsActive: false},
		{ProfileID: 1, StoreCode: "A668", Email: "store-only@example.test", IsActive: true},
	}

	plans := BuildPlans(profile, template, recipients, nil, map[string]string{"run_id": "r1", "summary": "ok"}, nil)

	assert.Len(t, plans, 1)
	assert.Equal(t, []string{"ops@example.test"}, plans[0].To)
	assert.Equal(t, "TD run r1", plans[0].Subject)
	assert.Equal(t, "ok", plans[0].Body)
	assert.Empty(t, plans[0].Attachments)
}

func TestBuildPlansGlobalScopeWithNoActiveRecipientsProducesNoPlan(t *testing.T) {
	profile := Profile{ID: 1, Scope: ScopeGlobal, IsActive: true}
	template := Template{IsActive: true}

	plans := BuildPlans(profile, template, nil, nil, nil, nil)

	assert.Empty(t, plans)
}

func TestBuildPlansPerStoreSkipsStoresWithoutRecipients(t *testing.T) {
	profile := Profile{ID: 2, Scope: ScopePerStore, AttachMode: AttachNone, IsActive: true}
	template := Template{Subject: "{{store_code}} recap", Body: "body", IsActive: true}
	recipients := []Recipient{
		{ProfileID: 2, StoreCode: "A668", Email: "a668@example.test", IsActive: true},
	}
	documents := []Document{
		{StoreCode: "A668", Kind: "report", Subtype: "xlsx", Path: "/tmp/a668.xlsx", FileName: "a668.xlsx"},
		{StoreCode: "B112", Kind: "report", Subtype: "xlsx", Path: "/tmp/b112.xlsx", FileName: "b112.xlsx"},
	}

	plans := BuildPlans(profile, template, recipients, documents, nil, map[string]map[string]string{
		"A668": {"store_code": "A668"},
		"B112": {"store_code": "B112"},
	})

	assert.Len(t, plans, 1)
	assert.Equal(t, "A668", plans[0].StoreCode)
	assert.Equal(t, "A668 recap", plans[0].Subject)
}

func TestBuildPlansPerStorePDFModeSkipsStoresMissingPDF(t *testing.T) {
	profile := Profile{ID: 3, Scope: ScopePerStore, AttachMode: AttachPerStorePDF, IsActive: true}
	template := Template{Subject: "recap", Body: "body", IsActive: true}
	recipients := []Recipient{
		{ProfileID: 3, StoreCode: "A668", Email: "a668@example.test", IsActive: true},
		{ProfileID: 3, StoreCode: "B112", Email: "b112@example.test", IsActive: true},
	}
	documents := []Document{
		{StoreCode: "A668", Subtype: "xlsx", Path: "/tmp/a668.xlsx", FileName: "a668.xlsx"},
		{StoreCode: "A668", Subtype: "pdf", Path: "/tmp/a668.pdf", FileName: "a668.pdf"},
		{StoreCode: "B112", Subtype: "xlsx", Path: "/tmp/b112.xlsx", FileName: "b112.xlsx"},
	}

	plans := BuildPlans(profile, template, recipients, documents, nil, nil)

	assert.Len(t, plans, 1)
	assert.Equal(t, "A668", plans[0].StoreCode)
	assert.Equal(t, []Attachment{{Filename: "a668.pdf", Path: "/tmp/a668.pdf"}}, plans[0].Attachments)
}

func TestBuildPlansInactiveProfileOrTemplateProducesNoPlans(t *testing.T) {
	recipients := []Recipient{{Email: "ops@example.test", IsActive: true}}

	inactiveProfile := Profile{Scope: ScopeGlobal, IsActive: false}
	activeTemplate := Template{IsActive: true}
	assert.Empty(t, BuildPlans(inactiveProfile, activeTemplate, recipients, nil, nil, nil))

	activeProfile := Profile{Scope: ScopeGlobal, IsActive: true}
	inactiveTemplate := Template{IsActive: false}
	assert.Empty(t, BuildPlans(activeProfile, inactiveTemplate, recipients, nil, nil, nil))
}
