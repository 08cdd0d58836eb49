package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Internship API",
        "description": "Internship registration, lecturer assignment, weekly reports and retakes",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Periods", "description": "Internship periods and their windows"},
        {"name": "Registrations", "description": "Registration state machine"},
        {"name": "Allocations", "description": "Lecturer capacity and auto-assign"},
        {"name": "Weekly Reports", "description": "Thirteen weekly reports per internship"},
        {"name": "Retakes", "description": "Retake requests after a completed internship"}
    ],
    "paths": {
        "/periods": {
            "get": {
                "tags": ["Periods"],
                "summary": "List periods",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Periods"],
                "summary": "Create period",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PeriodRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid window ordering", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/periods/active": {
            "get": {
                "tags": ["Periods"],
                "summary": "Active period",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/periods/visible": {
            "get": {
                "tags": ["Periods"],
                "summary": "Periods the caller is eligible for",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/periods/{id}/allocations": {
            "get": {
                "tags": ["Allocations"],
                "summary": "Lecturer allocations with remaining capacity",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "put": {
                "tags": ["Allocations"],
                "summary": "Set lecturer capacity",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AllocationRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/periods/{id}/auto-assign": {
            "post": {
                "tags": ["Allocations"],
                "summary": "Assign lecturers to registrations without one",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/periods/{id}/roster": {
            "get": {
                "tags": ["Periods"],
                "summary": "Export registration roster",
                "produces": ["text/csv", "application/pdf", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf", "xlsx"]}
                ],
                "responses": {"200": {"description": "File"}}
            }
        },
        "/registrations": {
            "post": {
                "tags": ["Registrations"],
                "summary": "Register for a period",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not eligible", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already registered", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/registrations/{id}/lecturer": {
            "post": {
                "tags": ["Registrations"],
                "summary": "Choose a lecturer",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ChooseLecturerRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Capacity exceeded or transition not allowed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/registrations/{id}/company": {
            "put": {
                "tags": ["Registrations"],
                "summary": "Submit company details",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CompanyRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/registrations/{id}/weekly-reports": {
            "get": {
                "tags": ["Weekly Reports"],
                "summary": "Weekly reports with progress",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/registrations/{id}/weekly-reports/{week}": {
            "post": {
                "tags": ["Weekly Reports"],
                "summary": "Submit or resubmit a weekly report",
                "consumes": ["application/json", "multipart/form-data"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "week", "in": "path", "required": true, "type": "integer", "minimum": 1, "maximum": 13}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/registrations/{id}/weekly-reports/{week}/review": {
            "post": {
                "tags": ["Weekly Reports"],
                "summary": "Grade a weekly report",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "week", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReviewWeeklyReportRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/retakes": {
            "get": {
                "tags": ["Retakes"],
                "summary": "List retake requests",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Retakes"],
                "summary": "Request a retake",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateRetakeRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        }
    },
    "definitions": {
        "PeriodRequest": {
            "type": "object",
            "properties": {
                "semester": {"type": "string"},
                "academic_year": {"type": "string"},
                "registration_start": {"type": "string", "format": "date"},
                "registration_end": {"type": "string", "format": "date"},
                "lecturer_selection_end": {"type": "string", "format": "date"},
                "internship_start": {"type": "string", "format": "date"},
                "search_deadline": {"type": "string", "format": "date"},
                "internship_end": {"type": "string", "format": "date"},
                "target_departments": {"type": "array", "items": {"type": "string"}},
                "target_cohorts": {"type": "array", "items": {"type": "string"}},
                "target_internship_statuses": {"type": "array", "items": {"type": "string"}},
                "allow_retake": {"type": "boolean"},
                "match_lecturer_department": {"type": "boolean"}
            },
            "required": ["semester", "academic_year", "registration_start", "registration_end", "lecturer_selection_end", "internship_start", "search_deadline", "internship_end"]
        },
        "AllocationRequest": {
            "type": "object",
            "properties": {
                "lecturer_id": {"type": "string"},
                "max_students": {"type": "integer", "minimum": 0}
            },
            "required": ["lecturer_id"]
        },
        "RegisterRequest": {
            "type": "object",
            "properties": {
                "period_id": {"type": "string"},
                "student_id": {"type": "string"}
            },
            "required": ["period_id"]
        },
        "ChooseLecturerRequest": {
            "type": "object",
            "properties": {
                "lecturer_id": {"type": "string"},
                "require_confirmation": {"type": "boolean"}
            },
            "required": ["lecturer_id"]
        },
        "CompanyRequest": {
            "type": "object",
            "properties": {
                "company_name": {"type": "string"},
                "company_address": {"type": "string"},
                "supervisor_name": {"type": "string"},
                "supervisor_phone": {"type": "string"},
                "position": {"type": "string"}
            },
            "required": ["company_name", "company_address", "supervisor_name", "supervisor_phone", "position"]
        },
        "ReviewWeeklyReportRequest": {
            "type": "object",
            "properties": {
                "decision": {"type": "string", "enum": ["approved", "rejected", "needs_revision"]},
                "grade": {"type": "number", "minimum": 0, "maximum": 10},
                "feedback": {"type": "string"}
            },
            "required": ["decision", "grade"]
        },
        "CreateRetakeRequest": {
            "type": "object",
            "properties": {
                "reason": {"type": "string"},
                "registration_id": {"type": "string"},
                "previous_grade": {"type": "number"}
            },
            "required": ["reason"]
        },
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
                "status": {"type": "integer"},
                "details": {"type": "object"}
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
