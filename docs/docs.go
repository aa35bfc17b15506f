// Package docs is the swaggo-generated swagger spec for the gateway API.
// Hand-maintained here in the shape `swag init` would produce: a
// doc-template constant registered against swag's global spec registry,
// and a SwaggerInfo describing the mounted host/base path. Run `swag
// init` after changing route annotations to regenerate SwaggerTemplate
// from the handlers' comments.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/status": {
            "get": {
                "summary": "Network and device status",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/health": {
            "get": {
                "summary": "Fused health snapshot",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/lqi": {
            "get": {
                "summary": "Link-quality cache",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/permit_join": {
            "post": {
                "summary": "Open the commissioning window",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/control": {
            "post": {
                "summary": "Send a ZCL On/Off command",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/delete": {
            "post": {
                "summary": "Remove a device and trigger it to leave the network",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/rename": {
            "post": {
                "summary": "Rename a device",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/wifi/scan": {
            "get": {
                "summary": "Scan for Wi-Fi networks",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/settings/wifi": {
            "post": {
                "summary": "Save Wi-Fi credentials and reboot",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/reboot": {
            "post": {
                "summary": "Schedule a reboot in 1 second",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/factory_reset": {
            "post": {
                "summary": "Sweep persistence and reboot",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/jobs": {
            "post": {
                "summary": "Submit an asynchronous job",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/jobs/{id}": {
            "get": {
                "summary": "Fetch a job's current state",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}
            }
        }
    }
}`

// SwaggerInfo holds exported swagger spec metadata, read by ginSwagger.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http"},
	Title:            "Zigbee Gateway API",
	Description:      "REST and WebSocket API for the Zigbee-to-IP gateway core runtime",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
