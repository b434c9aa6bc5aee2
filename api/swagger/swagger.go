package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SNCHS Enrollment API",
        "description": "Enrollment submission and registrar review service",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "Auth", "description": "Login and user administration"},
        {"name": "Enrollments", "description": "Submission and registrar review"},
        {"name": "Teachers", "description": "Public faculty roster"},
        {"name": "News", "description": "Announcements"},
        {"name": "Settings", "description": "Enrollment gate"},
        {"name": "Dashboard", "description": "Registrar aggregates"},
        {"name": "Export", "description": "CSV and PDF downloads"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Bootstrap admin login",
                "responses": {
                    "200": {"description": "Token issued"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/enrollments": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Submit an enrollment",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Validation failed"},
                    "409": {"description": "Enrollment closed"}
                }
            }
        },
        "/enrollments/mine": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List the caller's enrollments",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/enrollments/{id}": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "Get one enrollment",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK"},
                    "403": {"description": "Not the owner"},
                    "404": {"description": "Not found"}
                }
            },
            "put": {
                "tags": ["Enrollments"],
                "summary": "Amend an enrollment",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "No longer editable"}
                }
            }
        },
        "/admin/enrollments": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List enrollments",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "One cursor page"}
                }
            }
        },
        "/admin/enrollments/search": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "Search enrollments",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Ranked matches"}
                }
            }
        },
        "/admin/enrollments/{id}/status": {
            "put": {
                "tags": ["Enrollments"],
                "summary": "Move an enrollment along the lifecycle",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "Updated"},
                    "409": {"description": "Transition not allowed"}
                }
            }
        },
        "/admin/enrollments/{id}/archive": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Archive an enrollment",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Archived copy id"}
                }
            }
        },
        "/teachers": {
            "get": {
                "tags": ["Teachers"],
                "summary": "List faculty",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/news": {
            "get": {
                "tags": ["News"],
                "summary": "Public news feed",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/settings/enrollment": {
            "get": {
                "tags": ["Settings"],
                "summary": "Current enrollment settings",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/admin/dashboard/stats": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Enrollment statistics",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        }
    },
    "definitions": {
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "fields": {"type": "object"},
                "page": {"type": "object"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
