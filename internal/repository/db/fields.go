package db

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Kind is the value type a field column accepts
type Kind int

const (
	KindText Kind = iota
	KindInt
	KindNullableInt
	KindBool
	KindFloat
)

// Updatable fields are closed per entity. Each maps to one fixed UPDATE
// statement in the store, so column names never come from callers.

type UserField string

const (
	UserFieldName   UserField = "name"
	UserFieldEmail  UserField = "email"
	UserFieldRole   UserField = "role"
	UserFieldActive UserField = "active"
)

var userFields = map[UserField]Kind{
	UserFieldName:   KindText,
	UserFieldEmail:  KindText,
	UserFieldRole:   KindText,
	UserFieldActive: KindBool,
}

type ConversationField string

const (
	ConversationFieldTitle     ConversationField = "title"
	ConversationFieldActive    ConversationField = "active"
	ConversationFieldSummary   ConversationField = "summary"
	ConversationFieldModel     ConversationField = "model"
	ConversationFieldAssistant ConversationField = "assistant"
	ConversationFieldDocument  ConversationField = "doc_id"
)

var conversationFields = map[ConversationField]Kind{
	ConversationFieldTitle:     KindText,
	ConversationFieldActive:    KindBool,
	ConversationFieldSummary:   KindText,
	ConversationFieldModel:     KindText,
	ConversationFieldAssistant: KindNullableInt,
	ConversationFieldDocument:  KindNullableInt,
}

type HistoryField string

const (
	HistoryFieldFeedback HistoryField = "feedback"
	HistoryFieldSources  HistoryField = "sources"
)

var historyFields = map[HistoryField]Kind{
	HistoryFieldFeedback: KindInt,
	HistoryFieldSources:  KindText,
}

type DocumentField string

const (
	DocumentFieldName    DocumentField = "name"
	DocumentFieldSummary DocumentField = "summary"
	DocumentFieldSteps   DocumentField = "steps"
	DocumentFieldActive  DocumentField = "active"
)

var documentFields = map[DocumentField]Kind{
	DocumentFieldName:    KindText,
	DocumentFieldSummary: KindText,
	DocumentFieldSteps:   KindText,
	DocumentFieldActive:  KindBool,
}

type ModelField string

const (
	ModelFieldName        ModelField = "name"
	ModelFieldDescription ModelField = "description"
	ModelFieldPriceIn     ModelField = "price_in"
	ModelFieldPriceOut    ModelField = "price_out"
)

var modelFields = map[ModelField]Kind{
	ModelFieldName:        KindText,
	ModelFieldDescription: KindText,
	ModelFieldPriceIn:     KindFloat,
	ModelFieldPriceOut:    KindFloat,
}

type AssistantField string

const (
	AssistantFieldName         AssistantField = "name"
	AssistantFieldDescription  AssistantField = "description"
	AssistantFieldWelcome      AssistantField = "welcome"
	AssistantFieldSystemPrompt AssistantField = "system_prompt"
)

var assistantFields = map[AssistantField]Kind{
	AssistantFieldName:         KindText,
	AssistantFieldDescription:  KindText,
	AssistantFieldWelcome:      KindText,
	AssistantFieldSystemPrompt: KindText,
}

func parseField[F ~string](entity, s string, known map[F]Kind) (F, error) {
	f := F(s)
	if _, ok := known[f]; !ok {
		return "", fmt.Errorf("%w: %s has no updatable field %q", ErrUnknownField, entity, s)
	}
	return f, nil
}

func ParseUserField(s string) (UserField, error) { return parseField("user", s, userFields) }
func ParseConversationField(s string) (ConversationField, error) {
	return parseField("conversation", s, conversationFields)
}
func ParseHistoryField(s string) (HistoryField, error)   { return parseField("history", s, historyFields) }
func ParseDocumentField(s string) (DocumentField, error) { return parseField("document", s, documentFields) }
func ParseModelField(s string) (ModelField, error)       { return parseField("model", s, modelFields) }
func ParseAssistantField(s string) (AssistantField, error) {
	return parseField("assistant", s, assistantFields)
}

func (f UserField) Kind() Kind         { return userFields[f] }
func (f ConversationField) Kind() Kind { return conversationFields[f] }
func (f HistoryField) Kind() Kind      { return historyFields[f] }
func (f DocumentField) Kind() Kind     { return documentFields[f] }
func (f ModelField) Kind() Kind        { return modelFields[f] }
func (f AssistantField) Kind() Kind    { return assistantFields[f] }

// Coerce converts a loosely typed value (typically decoded from JSON) into the
// Go type the column of the given kind expects.
func Coerce(kind Kind, value any) (any, error) {
	switch kind {
	case KindText:
		if s, ok := value.(string); ok {
			return s, nil
		}
	case KindInt:
		if n, ok := toInt(value); ok {
			return n, nil
		}
	case KindNullableInt:
		if value == nil {
			return nil, nil
		}
		if n, ok := toInt(value); ok {
			return n, nil
		}
	case KindBool:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			if b, err := strconv.ParseBool(v); err == nil {
				return b, nil
			}
		default:
			if n, ok := toInt(value); ok && (n == 0 || n == 1) {
				return n == 1, nil
			}
		}
	case KindFloat:
		if f, ok := toFloat(value); ok {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %v (%T)", ErrInvalidValue, value, value)
}

func toInt(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return int64(v), true
		}
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	}
	return 0, false
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}
