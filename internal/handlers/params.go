package handlers

import "fmt"

// ParamKind is the closed set of values a handler can ask for.
type ParamKind int

const (
	ParamContext ParamKind = iota + 1
	ParamRawMessage
	ParamClient
	ParamArgs
	ParamArg
	ParamAttachments
	ParamMentions
	ParamComponent
	ParamComponentParams
	ParamComponentParam
	ParamMessageText
	ParamChannel
	ParamClan
	ParamUser
	ParamMessageEntity
	ParamComponentTarget
	ParamAutoContext
	ParamEventPayload
	ParamFormData
	ParamUtils
)

var paramKindNames = map[ParamKind]string{
	ParamContext:         "context",
	ParamRawMessage:      "raw-message",
	ParamClient:          "client",
	ParamArgs:            "args",
	ParamArg:             "arg",
	ParamAttachments:     "attachments",
	ParamMentions:        "mentions",
	ParamComponent:       "component",
	ParamComponentParams: "component-params",
	ParamComponentParam:  "component-param",
	ParamMessageText:     "message-text",
	ParamChannel:         "channel",
	ParamClan:            "clan",
	ParamUser:            "user",
	ParamMessageEntity:   "message-entity",
	ParamComponentTarget: "component-target",
	ParamAutoContext:     "auto-context",
	ParamEventPayload:    "event-payload",
	ParamFormData:        "form-data",
	ParamUtils:           "utils",
}

func (k ParamKind) String() string {
	if name, ok := paramKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ParamKind(%d)", int(k))
}

// Valid reports whether k is a known kind.
func (k ParamKind) Valid() bool {
	_, ok := paramKindNames[k]
	return ok
}

// Selector narrows a parameter to a field name or an index.
type Selector struct {
	Name     string
	Index    int
	HasIndex bool
}

// Field selects a named field or capture.
func Field(name string) Selector {
	return Selector{Name: name}
}

// At selects an index.
func At(i int) Selector {
	return Selector{Index: i, HasIndex: true}
}

// IsZero reports whether nothing is selected.
func (s Selector) IsZero() bool {
	return s.Name == "" && !s.HasIndex
}

func (s Selector) String() string {
	switch {
	case s.HasIndex:
		return fmt.Sprintf("[%d]", s.Index)
	case s.Name != "":
		return "." + s.Name
	default:
		return ""
	}
}

// ParamRequest asks for one value at one argument position.
type ParamRequest struct {
	Index    int
	Kind     ParamKind
	Selector Selector
}

func (r ParamRequest) String() string {
	return fmt.Sprintf("%d:%s%s", r.Index, r.Kind, r.Selector)
}

func request(kind ParamKind, sel Selector) ParamRequest {
	return ParamRequest{Kind: kind, Selector: sel}
}

func optionalField(kind ParamKind, field []string) ParamRequest {
	if len(field) > 0 && field[0] != "" {
		return request(kind, Field(field[0]))
	}
	return request(kind, Selector{})
}

func optionalIndex(kind ParamKind, index []int) ParamRequest {
	if len(index) > 0 {
		return request(kind, At(index[0]))
	}
	return request(kind, Selector{})
}

// Context requests the invocation context.
func Context() ParamRequest { return request(ParamContext, Selector{}) }

// RawMessage requests the inbound message, or one of its fields.
func RawMessage(field ...string) ParamRequest { return optionalField(ParamRawMessage, field) }

// Client requests the platform client handle.
func Client() ParamRequest { return request(ParamClient, Selector{}) }

// Args requests every command argument or component capture.
func Args() ParamRequest { return request(ParamArgs, Selector{}) }

// Arg requests one positional argument.
func Arg(i int) ParamRequest { return request(ParamArg, At(i)) }

// Attachments requests the message attachments, or one of them.
func Attachments(index ...int) ParamRequest { return optionalIndex(ParamAttachments, index) }

// Mentions requests the message mentions, or one of them.
func Mentions(index ...int) ParamRequest { return optionalIndex(ParamMentions, index) }

// ComponentPayload requests the click payload.
func ComponentPayload() ParamRequest { return request(ParamComponent, Selector{}) }

// ComponentParams requests the named captures, or one of them.
func ComponentParams(name ...string) ParamRequest { return optionalField(ParamComponentParams, name) }

// ComponentParam requests a single named capture.
func ComponentParam(name string) ParamRequest { return request(ParamComponentParam, Field(name)) }

// ComponentParamAt requests a single positional capture.
func ComponentParamAt(i int) ParamRequest { return request(ParamComponentParam, At(i)) }

// MessageText requests the message text, or another content key such as
// "mk" or "components".
func MessageText(key ...string) ParamRequest { return optionalField(ParamMessageText, key) }

// Channel requests the channel entity, or one of its fields.
func Channel(field ...string) ParamRequest { return optionalField(ParamChannel, field) }

// Clan requests the clan entity.
func Clan() ParamRequest { return request(ParamClan, Selector{}) }

// User requests the acting user entity, or one of its fields.
func User(field ...string) ParamRequest { return optionalField(ParamUser, field) }

// MessageEntity requests the fetched message entity, or one of its fields.
func MessageEntity(field ...string) ParamRequest { return optionalField(ParamMessageEntity, field) }

// ComponentTarget requests the message a component is attached to.
func ComponentTarget() ParamRequest { return request(ParamComponentTarget, Selector{}) }

// AutoContext requests the reply/dm/channel helper bundle, or one part of
// it: "message", "dm" or "channel".
func AutoContext(part ...string) ParamRequest { return optionalField(ParamAutoContext, part) }

// EventPayload requests the raw event, or one of its fields.
func EventPayload(field ...string) ParamRequest { return optionalField(ParamEventPayload, field) }

// FormData requests the submitted form values, or one of them.
func FormData(key ...string) ParamRequest { return optionalField(ParamFormData, key) }

// Utils requests the directory utility handle.
func Utils() ParamRequest { return request(ParamUtils, Selector{}) }
