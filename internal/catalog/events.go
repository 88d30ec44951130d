package catalog

import "encoding/json"

// Default returns the registry of event types the platform knows about.
// Callers may still ingest types outside this list; those are stored with
// the unvalidated flag set.
func Default() *Registry {
	return NewRegistry([]Event{
		{
			Type:        "project.created",
			Category:    "projects",
			Description: "A project was created in the workspace.",
			Fields: []Field{
				{Name: "projectId", Kind: KindString, Required: true, MaxLen: 64},
				{Name: "name", Kind: KindString, Required: true, MaxLen: 255},
				{Name: "ownerId", Kind: KindString, Required: true, MaxLen: 64},
			},
			Example: json.RawMessage(`{"projectId":"p1","name":"Demo","ownerId":"6f1c2a04-0d6a-4b11-9d53-111111111111"}`),
		},
		{
			Type:        "project.completed",
			Category:    "projects",
			Description: "A project was marked complete.",
			Fields: []Field{
				{Name: "projectId", Kind: KindString, Required: true, MaxLen: 64},
				{Name: "completedAt", Kind: KindString, Required: false},
			},
			Example: json.RawMessage(`{"projectId":"p1","completedAt":"2025-06-01T12:00:00Z"}`),
		},
		{
			Type:        "client.created",
			Category:    "clients",
			Description: "A client record was added.",
			Fields: []Field{
				{Name: "clientId", Kind: KindString, Required: true, MaxLen: 64},
				{Name: "name", Kind: KindString, Required: true, MaxLen: 255},
				{Name: "email", Kind: KindString, Required: false, MaxLen: 320},
			},
			Example: json.RawMessage(`{"clientId":"c1","name":"Acme Co","email":"ops@acme.test"}`),
		},
		{
			Type:        "client.archived",
			Category:    "clients",
			Description: "A client record was archived.",
			Fields: []Field{
				{Name: "clientId", Kind: KindString, Required: true, MaxLen: 64},
			},
			Example: json.RawMessage(`{"clientId":"c1"}`),
		},
		{
			Type:        "content.published",
			Category:    "content",
			Description: "A CMS entry went live.",
			Fields: []Field{
				{Name: "contentId", Kind: KindString, Required: true, MaxLen: 64},
				{Name: "slug", Kind: KindString, Required: true, MaxLen: 255},
				{Name: "title", Kind: KindString, Required: false, MaxLen: 255},
			},
			Example: json.RawMessage(`{"contentId":"post-9","slug":"launch-announcement","title":"We launched"}`),
		},
		{
			Type:        "form.submitted",
			Category:    "forms",
			Description: "A public form was submitted.",
			Fields: []Field{
				{Name: "formId", Kind: KindString, Required: true, MaxLen: 64},
				{Name: "fields", Kind: KindObject, Required: true},
			},
			Example: json.RawMessage(`{"formId":"contact","fields":{"email":"lead@example.test","message":"hi"}}`),
		},
		{
			Type:        "invoice.paid",
			Category:    "billing",
			Description: "An invoice was paid in full.",
			Fields: []Field{
				{Name: "invoiceId", Kind: KindString, Required: true, MaxLen: 64},
				{Name: "amount", Kind: KindNumber, Required: true},
				{Name: "currency", Kind: KindString, Required: false, MaxLen: 3},
			},
			Example: json.RawMessage(`{"invoiceId":"inv-1001","amount":1250.00,"currency":"USD"}`),
		},
		{
			Type:        "user.registered",
			Category:    "users",
			Description: "A new user signed up.",
			Fields: []Field{
				{Name: "userId", Kind: KindString, Required: true, MaxLen: 64},
				{Name: "email", Kind: KindString, Required: true, MaxLen: 320},
			},
			Example: json.RawMessage(`{"userId":"u1","email":"new@user.test"}`),
		},
	})
}
