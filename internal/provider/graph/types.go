// Package graph implements a Backend that sends email through the Microsoft
// Graph sendMail API.
package graph

import (
	"encoding/base64"

	"github.com/samber/lo"

	"github.com/shineum/anymail-lite/internal/message"
)

// sendMailRequest is the top-level request body for the Graph API sendMail endpoint.
type sendMailRequest struct {
	Message sendMailMessage `json:"message"`
}

// sendMailMessage represents the message portion of a sendMail request.
type sendMailMessage struct {
	Subject                string            `json:"subject"`
	Body                   messageBody       `json:"body"`
	From                   *recipient        `json:"from,omitempty"`
	ToRecipients           []recipient       `json:"toRecipients"`
	CcRecipients           []recipient       `json:"ccRecipients,omitempty"`
	BccRecipients          []recipient       `json:"bccRecipients,omitempty"`
	ReplyTo                []recipient       `json:"replyTo,omitempty"`
	Attachments            []graphAttachment `json:"attachments,omitempty"`
	InternetMessageHeaders []internetHeader  `json:"internetMessageHeaders,omitempty"`
	Categories             []string          `json:"categories,omitempty"`
}

// messageBody represents the body of an email message.
type messageBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// recipient represents an email recipient.
type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

// emailAddress represents an email address in a Graph API request.
type emailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// graphAttachment represents a file attachment in a Graph API request.
type graphAttachment struct {
	ODataType    string `json:"@odata.type"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType,omitempty"`
	ContentBytes string `json:"contentBytes"`
	IsInline     bool   `json:"isInline,omitempty"`
	ContentID    string `json:"contentId,omitempty"`
}

type internetHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func toRecipient(a message.Address) recipient {
	return recipient{EmailAddress: emailAddress{Address: a.Email, Name: a.Name}}
}

func toRecipients(list []message.Address) []recipient {
	return lo.Map(list, func(a message.Address, _ int) recipient { return toRecipient(a) })
}

// buildBody picks the HTML alternative when there is one.
func buildBody(msg *message.Message) messageBody {
	body := messageBody{
		ContentType: "text",
		Content:     msg.TextBody(),
	}
	if html := msg.HTMLBody(); html != "" {
		body.ContentType = "html"
		body.Content = html
	}
	return body
}

func buildAttachments(atts []message.Attachment) []graphAttachment {
	return lo.Map(atts, func(att message.Attachment, _ int) graphAttachment {
		out := graphAttachment{
			ODataType:    "#microsoft.graph.fileAttachment",
			Name:         att.Filename,
			ContentType:  att.MimeType,
			ContentBytes: base64.StdEncoding.EncodeToString(att.Content),
		}
		if att.Inline() {
			out.IsInline = true
			out.ContentID = att.ContentID
			if out.Name == "" {
				out.Name = att.ContentID
			}
		}
		return out
	})
}
