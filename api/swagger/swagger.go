package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Natation Club API",
        "description": "Swimming school and club membership platform",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login and token lifecycle"},
        {"name": "Profiles", "description": "Swimmer profiles"},
        {"name": "Courses", "description": "Course catalog"},
        {"name": "Plans", "description": "Pricing catalog"},
        {"name": "Series", "description": "Recurring session templates"},
        {"name": "Sessions", "description": "Materialized calendar"},
        {"name": "Enrollments", "description": "Session enrollment and billing"},
        {"name": "Invoices", "description": "Invoices and PDF receipts"},
        {"name": "Payments", "description": "Manual payment review"},
        {"name": "Memberships", "description": "Club subscriptions"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "responses": {"200": {"description": "OK"}, "401": {"description": "Invalid credentials"}}
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Rotate refresh token",
                "responses": {"200": {"description": "OK"}, "401": {"description": "Expired or revoked"}}
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Revoke refresh token",
                "responses": {"204": {"description": "Revoked"}}
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user info",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/profiles": {
            "get": {
                "tags": ["Profiles"],
                "summary": "List profiles",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Profiles"],
                "summary": "Register a profile",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/profiles/me": {
            "get": {
                "tags": ["Profiles"],
                "summary": "Caller's profile",
                "responses": {"200": {"description": "OK"}, "404": {"description": "No profile"}}
            }
        },
        "/profiles/{id}": {
            "get": {
                "tags": ["Profiles"],
                "summary": "Get a profile",
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            },
            "put": {
                "tags": ["Profiles"],
                "summary": "Update a profile",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/courses": {
            "get": {
                "tags": ["Courses"],
                "summary": "List courses",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Courses"],
                "summary": "Create a course",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/courses/{id}": {
            "get": {
                "tags": ["Courses"],
                "summary": "Get a course",
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            },
            "put": {
                "tags": ["Courses"],
                "summary": "Update a course",
                "responses": {"200": {"description": "OK"}, "412": {"description": "Category locked"}}
            }
        },
        "/plans": {
            "get": {
                "tags": ["Plans"],
                "summary": "List plans",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Plans"],
                "summary": "Create a plan",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/plans/{id}": {
            "get": {
                "tags": ["Plans"],
                "summary": "Get a plan",
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            }
        },
        "/series": {
            "get": {
                "tags": ["Series"],
                "summary": "List series",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Series"],
                "summary": "Create a series and materialize sessions",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/series/{id}": {
            "get": {
                "tags": ["Series"],
                "summary": "Get a series",
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            },
            "put": {
                "tags": ["Series"],
                "summary": "Update a series and regenerate future sessions",
                "responses": {"200": {"description": "OK"}}
            },
            "delete": {
                "tags": ["Series"],
                "summary": "Cancel a series",
                "responses": {"200": {"description": "Cancelled"}}
            }
        },
        "/series/{id}/regenerate": {
            "post": {
                "tags": ["Series"],
                "summary": "Regenerate future sessions",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/sessions": {
            "get": {
                "tags": ["Sessions"],
                "summary": "List sessions",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/sessions/{id}": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Get a session",
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            },
            "delete": {
                "tags": ["Sessions"],
                "summary": "Cancel a single occurrence",
                "responses": {"200": {"description": "Cancelled"}}
            }
        },
        "/enrollments": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List enrollments",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Enrollments"],
                "summary": "Enroll a profile into a session",
                "responses": {"201": {"description": "Created"}, "409": {"description": "Already enrolled"}}
            }
        },
        "/enrollments/quote": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Price a slot selection",
                "responses": {"200": {"description": "OK"}, "422": {"description": "No valid plan"}}
            }
        },
        "/enrollments/{id}": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "Get an enrollment",
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            },
            "delete": {
                "tags": ["Enrollments"],
                "summary": "Cancel an enrollment",
                "responses": {"200": {"description": "Cancelled"}}
            }
        },
        "/invoices": {
            "get": {
                "tags": ["Invoices"],
                "summary": "List invoices",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/invoices/{id}": {
            "get": {
                "tags": ["Invoices"],
                "summary": "Get an invoice",
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            }
        },
        "/invoices/{id}/receipt": {
            "post": {
                "tags": ["Invoices"],
                "summary": "Generate the receipt PDF",
                "responses": {"200": {"description": "Signed link"}, "429": {"description": "Generation in progress"}}
            }
        },
        "/invoices/{id}/receipt/unlock": {
            "post": {
                "tags": ["Invoices"],
                "summary": "Clear a stuck generation flag",
                "responses": {"204": {"description": "Unlocked"}}
            }
        },
        "/invoices/receipts/{token}": {
            "get": {
                "tags": ["Invoices"],
                "summary": "Download a receipt via signed token",
                "responses": {"200": {"description": "PDF"}, "403": {"description": "Invalid or expired link"}}
            }
        },
        "/payments": {
            "get": {
                "tags": ["Payments"],
                "summary": "List payments",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Payments"],
                "summary": "Record a payment declaration",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/payments/{id}/approve": {
            "post": {
                "tags": ["Payments"],
                "summary": "Approve a pending payment",
                "responses": {"200": {"description": "Approved"}, "412": {"description": "Not pending"}}
            }
        },
        "/payments/{id}/reject": {
            "post": {
                "tags": ["Payments"],
                "summary": "Reject a pending payment",
                "responses": {"200": {"description": "Rejected"}}
            }
        },
        "/memberships": {
            "get": {
                "tags": ["Memberships"],
                "summary": "List memberships",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Memberships"],
                "summary": "Subscribe a profile",
                "responses": {"201": {"description": "Created"}, "409": {"description": "Already active"}}
            }
        },
        "/memberships/{id}": {
            "delete": {
                "tags": ["Memberships"],
                "summary": "Cancel a membership",
                "responses": {"200": {"description": "Cancelled"}}
            }
        }
    },
    "definitions": {
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
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
                "pagination": {"$ref": "#/definitions/Pagination"},
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
