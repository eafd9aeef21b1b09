package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "LMS Exam API",
        "description": "Exam allocation and rescheduling engine",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Exams", "description": "Exam allocation and final scheduling"},
        {"name": "Reschedule", "description": "Moving students between exam slots"},
        {"name": "Institutes", "description": "Lab availability"},
        {"name": "Metrics", "description": "Scheduling counters"}
    ],
    "paths": {
        "/exams/allocate": {
            "post": {
                "tags": ["Exams"],
                "summary": "Allocate systems for a course",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AllocateSystemsRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Scheduling failure", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/final": {
            "post": {
                "tags": ["Exams"],
                "summary": "Schedule a single-section final exam",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScheduleFinalRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Capacity exhausted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Policy violation", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/multi-section": {
            "post": {
                "tags": ["Exams"],
                "summary": "Schedule a multi-section final exam",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScheduleMultiSectionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Policy violation", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/{id}": {
            "get": {
                "tags": ["Exams"],
                "summary": "Get exam",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/{id}/admit-cards": {
            "get": {
                "tags": ["Exams"],
                "summary": "List admit cards",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/{id}/reschedule": {
            "post": {
                "tags": ["Reschedule"],
                "summary": "Bulk reschedule students",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RescheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Scheduling failure", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Reschedule"],
                "summary": "Update a rescheduled exam roster",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RescheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Policy violation", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reschedule-requests/decision": {
            "post": {
                "tags": ["Reschedule"],
                "summary": "Approve or reject reschedule requests",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ApproveRescheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/institutes/{id}/availability": {
            "get": {
                "tags": ["Institutes"],
                "summary": "Free systems for a window",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "date", "in": "query", "required": true, "type": "string"},
                    {"name": "startTime", "in": "query", "required": true, "type": "string"},
                    {"name": "duration", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics/scheduling": {
            "get": {
                "tags": ["Metrics"],
                "summary": "Scheduling counters",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "AllocateSystemsRequest": {
            "type": "object",
            "required": ["courseId", "instituteId", "title", "date", "totalQuestions"],
            "properties": {
                "courseId": {"type": "string"},
                "instituteId": {"type": "string"},
                "title": {"type": "string"},
                "type": {"type": "string", "enum": ["DPP", "Final"]},
                "date": {"type": "string", "format": "date"},
                "startTime": {"type": "string", "example": "09:00"},
                "examNumber": {"type": "integer"},
                "totalQuestions": {"type": "integer"},
                "selectedQuestionBankIds": {"type": "array", "items": {"type": "string"}},
                "forceNextDay": {"type": "boolean"},
                "forceNextSection": {"type": "boolean"}
            }
        },
        "ScheduleFinalRequest": {
            "type": "object",
            "required": ["courseId", "instituteId", "title", "date", "startTime", "examNumber"],
            "properties": {
                "courseId": {"type": "string"},
                "instituteId": {"type": "string"},
                "title": {"type": "string"},
                "date": {"type": "string", "format": "date"},
                "startTime": {"type": "string", "example": "09:00"},
                "studentIds": {"type": "array", "items": {"type": "string"}},
                "examNumber": {"type": "integer"}
            }
        },
        "ScheduleMultiSectionRequest": {
            "type": "object",
            "required": ["instituteId", "courseId", "studentIds", "proposedDate", "title"],
            "properties": {
                "instituteId": {"type": "string"},
                "courseId": {"type": "string"},
                "studentIds": {"type": "array", "items": {"type": "string"}},
                "proposedDate": {"type": "string", "format": "date"},
                "title": {"type": "string"},
                "examNumber": {"type": "integer"}
            }
        },
        "RescheduleRequest": {
            "type": "object",
            "required": ["studentIds", "rescheduleDate", "reason"],
            "properties": {
                "studentIds": {"type": "array", "items": {"type": "string"}},
                "rescheduleDate": {"type": "string", "format": "date"},
                "reason": {"type": "string"}
            }
        },
        "ApproveRescheduleRequest": {
            "type": "object",
            "required": ["requestIds"],
            "properties": {
                "requestIds": {"type": "array", "items": {"type": "string"}},
                "approve": {"type": "boolean"}
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
