package api

import "net/http"

// openAPIDocument describes the HTTP surface for tool integrations that
// discover endpoints from a schema.
var openAPIDocument = map[string]any{
	"openapi": "3.0.3",
	"info": map[string]any{
		"title":       "Heimdex",
		"description": "Ingests smart home device events and answers questions about them using retrieval-augmented generation.",
		"version":     "1.0.0",
	},
	"paths": map[string]any{
		"/health": map[string]any{
			"get": map[string]any{
				"summary":     "Service health check",
				"operationId": "getHealth",
				"responses": map[string]any{
					"200": map[string]any{"description": "Service is up"},
				},
			},
		},
		"/iobroker-event": map[string]any{
			"post": map[string]any{
				"summary":     "Ingest one device event",
				"operationId": "ingestEvent",
				"requestBody": map[string]any{
					"required": true,
					"content": map[string]any{
						"application/json": map[string]any{
							"schema": map[string]any{"$ref": "#/components/schemas/Event"},
						},
					},
				},
				"responses": map[string]any{
					"200": map[string]any{"description": "Event processed and stored"},
					"400": map[string]any{"description": "Missing required fields or invalid payload"},
					"500": map[string]any{"description": "Embedding or storage failure"},
				},
			},
		},
		"/iobroker-events": map[string]any{
			"post": map[string]any{
				"summary":     "Ingest a batch of device events",
				"operationId": "ingestEventBatch",
				"requestBody": map[string]any{
					"required": true,
					"content": map[string]any{
						"application/json": map[string]any{
							"schema": map[string]any{
								"type":  "array",
								"items": map[string]any{"$ref": "#/components/schemas/Event"},
							},
						},
					},
				},
				"responses": map[string]any{
					"200": map[string]any{"description": "Per-event results"},
					"400": map[string]any{"description": "Invalid or empty payload"},
				},
			},
		},
		"/tools/get_iobroker_data_answer": map[string]any{
			"post": map[string]any{
				"summary":     "Answer a question about recorded home events",
				"operationId": "getIobrokerDataAnswer",
				"requestBody": map[string]any{
					"required": true,
					"content": map[string]any{
						"application/json": map[string]any{
							"schema": map[string]any{
								"type":     "object",
								"required": []string{"user_query"},
								"properties": map[string]any{
									"user_query": map[string]any{
										"type":        "string",
										"description": "The question to answer from stored event history",
									},
								},
							},
						},
					},
				},
				"responses": map[string]any{
					"200": map[string]any{"description": "Grounded answer"},
					"400": map[string]any{"description": "Parameter 'user_query' is missing"},
					"500": map[string]any{"description": "Embedding or generation failure"},
				},
			},
		},
	},
	"components": map[string]any{
		"schemas": map[string]any{
			"Event": map[string]any{
				"type":     "object",
				"required": []string{"device_name", "event_type", "value", "data_type", "human_readable_description"},
				"properties": map[string]any{
					"device_name":                map[string]any{"type": "string"},
					"event_type":                 map[string]any{"type": "string"},
					"value":                      map[string]any{},
					"data_type":                  map[string]any{"type": "string", "enum": []string{"boolean", "number", "string", "mixed"}},
					"human_readable_description": map[string]any{"type": "string"},
					"timestamp":                  map[string]any{"type": "integer", "description": "Milliseconds since epoch"},
					"location":                   map[string]any{"type": "string"},
				},
			},
		},
	},
}

func handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, openAPIDocument)
}
