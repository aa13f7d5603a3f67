package models

import (
	"sort"
	"time"
)

// EnquiryData is the structured qualification data collected for one enquiry.
// Budget and Extra hold whatever scalar the upstream sent ("15000", 15000, "lots"), so
// malformed values reach the rules and fail their comparisons instead of the request.
// Empty strings and KindNone values mean the field was not provided.
type EnquiryData struct {
	ProductInterest string           `json:"product_interest,omitempty"`
	Budget          Value            `json:"budget,omitzero"`
	Timeline        string           `json:"timeline,omitempty"`
	UseCase         string           `json:"use_case,omitempty"`
	Extra           map[string]Value `json:"extra,omitempty"`
}

// Lookup maps a rule field name onto a comparable value. Unknown or unset fields return false.
func (d EnquiryData) Lookup(field string) (Value, bool) {
	switch field {
	case "product_interest":
		return optionalString(d.ProductInterest)
	case "budget":
		return optionalValue(d.Budget)
	case "timeline":
		return optionalString(d.Timeline)
	case "use_case":
		return optionalString(d.UseCase)
	}
	return optionalValue(d.Extra[field])
}

func optionalString(s string) (Value, bool) {
	return optionalValue(StringValue(s))
}

func optionalValue(v Value) (Value, bool) {
	if v.Kind == KindNone || (v.Kind == KindString && v.Str == "") {
		return Value{}, false
	}
	return v, true
}

// Field is one named entry of EnquiryData, used for display.
type Field struct {
	Name  string
	Value string
}

// Fields lists the provided fields: typed fields first, then extra fields sorted by name.
func (d EnquiryData) Fields() []Field {
	var out []Field
	add := func(name string, v Value) {
		if v, ok := optionalValue(v); ok {
			out = append(out, Field{name, v.Text()})
		}
	}
	add("product_interest", StringValue(d.ProductInterest))
	add("budget", d.Budget)
	add("timeline", StringValue(d.Timeline))
	add("use_case", StringValue(d.UseCase))
	keys := make([]string, 0, len(d.Extra))
	for k := range d.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		add(k, d.Extra[k])
	}
	return out
}

// Clone returns a deep copy.
func (d EnquiryData) Clone() EnquiryData {
	c := d
	if d.Extra != nil {
		c.Extra = make(map[string]Value, len(d.Extra))
		for k, v := range d.Extra {
			c.Extra[k] = v
		}
	}
	return c
}

// Verdict is the outcome of qualification.
type Verdict string

const (
	VerdictQualified    Verdict = "qualified"
	VerdictDisqualified Verdict = "disqualified"
	VerdictNeedsHuman   Verdict = "needs_human"
)

// Channel is where an enquiry originated.
type Channel string

const (
	ChannelWebsite  Channel = "website"
	ChannelWhatsApp Channel = "whatsapp"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	return c == ChannelWebsite || c == ChannelWhatsApp
}

// SupportsReply reports whether the prospect can be messaged back on this channel.
func (c Channel) SupportsReply() bool {
	return c == ChannelWhatsApp
}

// Prospect identifies the person behind an enquiry.
type Prospect struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

// Role is the author of a conversation message.
type Role string

const (
	RoleSystem   Role = "system"
	RoleProspect Role = "prospect"
)

// Message is one conversation turn.
type Message struct {
	Role      Role      `json:"role"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// EscalationContext is the complete snapshot handed to a human operator.
type EscalationContext struct {
	EnquiryID           string      `json:"enquiry_id"`
	Prospect            Prospect    `json:"prospect"`
	Channel             Channel     `json:"channel"`
	ConversationHistory []Message   `json:"conversation_history"`
	QualificationData   EnquiryData `json:"qualification_data"`
	QualificationStatus Verdict     `json:"qualification_status"`
	Reason              string      `json:"reason"`
}

// Clone returns a deep copy so the snapshot cannot change under the caller.
func (c EscalationContext) Clone() EscalationContext {
	out := c
	out.ConversationHistory = append([]Message(nil), c.ConversationHistory...)
	out.QualificationData = c.QualificationData.Clone()
	return out
}

// RecentMessages returns up to the last n messages, oldest first. n <= 0 returns all.
func (c EscalationContext) RecentMessages(n int) []Message {
	h := c.ConversationHistory
	if n > 0 && len(h) > n {
		h = h[len(h)-n:]
	}
	return append([]Message(nil), h...)
}
