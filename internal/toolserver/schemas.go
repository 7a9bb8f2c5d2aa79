package toolserver

const whoAmISchema = `{"type":"object","additionalProperties":false}`

const createConversationSchema = `{
  "type": "object",
  "properties": {
    "title": {"type": "string"},
    "project": {"type": "string"}
  },
  "additionalProperties": false
}`

const listConversationsSchema = `{
  "type": "object",
  "properties": {
    "status": {"type": "string", "enum": ["active", "completed", "all"]},
    "limit": {"type": "integer", "minimum": 1, "maximum": 100},
    "offset": {"type": "integer", "minimum": 0}
  },
  "additionalProperties": false
}`

const getConversationSchema = `{
  "type": "object",
  "required": ["conversation_id"],
  "properties": {
    "conversation_id": {"type": "string"}
  },
  "additionalProperties": false
}`

const closeConversationSchema = `{
  "type": "object",
  "required": ["conversation_id"],
  "properties": {
    "conversation_id": {"type": "string"},
    "summary": {"type": "string"},
    "sync": {"type": "boolean"}
  },
  "additionalProperties": false
}`

const sendMessageSchema = `{
  "type": "object",
  "required": ["target", "content"],
  "properties": {
    "conversation_id": {"type": "string"},
    "target": {"type": "string", "enum": ["claude", "codex"]},
    "content": {"type": "string", "minLength": 1},
    "priority": {"type": "string", "enum": ["normal", "high", "urgent"]},
    "wait_for_response": {"type": "boolean"},
    "timeout_ms": {"type": "integer", "minimum": 1, "maximum": 300000},
    "agent": {"type": "string"}
  },
  "additionalProperties": false
}`

const getResponseSchema = `{
  "type": "object",
  "required": ["message_id"],
  "properties": {
    "message_id": {"type": "string"},
    "timeout_ms": {"type": "integer", "minimum": 1, "maximum": 300000}
  },
  "additionalProperties": false
}`

const getHistorySchema = `{
  "type": "object",
  "required": ["conversation_id"],
  "properties": {
    "conversation_id": {"type": "string"},
    "limit": {"type": "integer", "minimum": 1, "maximum": 500},
    "offset": {"type": "integer", "minimum": 0}
  },
  "additionalProperties": false
}`

const markMessageReadSchema = `{
  "type": "object",
  "required": ["message_id"],
  "properties": {
    "message_id": {"type": "string"}
  },
  "additionalProperties": false
}`

const shareContextSchema = `{
  "type": "object",
  "required": ["context_type", "content"],
  "properties": {
    "conversation_id": {"type": "string"},
    "context_type": {"type": "string", "enum": ["file", "snippet", "entity", "memory_item", "url"]},
    "content": {"type": "string", "minLength": 1},
    "description": {"type": "string"}
  },
  "additionalProperties": false
}`

const getSharedContextSchema = `{
  "type": "object",
  "required": ["context_id"],
  "properties": {
    "context_id": {"type": "string"}
  },
  "additionalProperties": false
}`

const listSharedContextSchema = `{
  "type": "object",
  "properties": {
    "conversation_id": {"type": "string"},
    "limit": {"type": "integer", "minimum": 1, "maximum": 200},
    "offset": {"type": "integer", "minimum": 0}
  },
  "additionalProperties": false
}`

const delegateResearchSchema = `{
  "type": "object",
  "required": ["target", "topic"],
  "properties": {
    "target": {"type": "string", "enum": ["claude", "codex"]},
    "topic": {"type": "string", "minLength": 1},
    "context": {"type": "string"},
    "depth": {"type": "string", "enum": ["shallow", "medium", "deep"]},
    "conversation_id": {"type": "string"},
    "sync": {"type": "boolean"}
  },
  "additionalProperties": false
}`

const requestReviewSchema = `{
  "type": "object",
  "required": ["target", "content", "review_type"],
  "properties": {
    "target": {"type": "string", "enum": ["claude", "codex"]},
    "content": {"type": "string", "minLength": 1},
    "review_type": {"type": "string", "enum": ["code", "architecture", "security", "performance", "general"]},
    "context": {"type": "string"},
    "conversation_id": {"type": "string"},
    "sync": {"type": "boolean"}
  },
  "additionalProperties": false
}`
