package ses

// sendEmailInput is the JSON body of the SES v2 SendEmail REST operation.
type sendEmailInput struct {
	FromEmailAddress     *string      `json:"FromEmailAddress"`
	Destination          destination  `json:"Destination"`
	ReplyToAddresses     []string     `json:"ReplyToAddresses,omitempty"`
	Content              emailContent `json:"Content"`
	EmailTags            []messageTag `json:"EmailTags,omitempty"`
	ConfigurationSetName *string      `json:"ConfigurationSetName,omitempty"`
}

type destination struct {
	ToAddresses  []string `json:"ToAddresses,omitempty"`
	CcAddresses  []string `json:"CcAddresses,omitempty"`
	BccAddresses []string `json:"BccAddresses,omitempty"`
}

type emailContent struct {
	Simple *simpleMessage `json:"Simple"`
}

type simpleMessage struct {
	Subject     content         `json:"Subject"`
	Body        body            `json:"Body"`
	Headers     []messageHeader `json:"Headers,omitempty"`
	Attachments []attachment    `json:"Attachments,omitempty"`
}

type content struct {
	Data    *string `json:"Data"`
	Charset *string `json:"Charset,omitempty"`
}

type body struct {
	Text *content `json:"Text,omitempty"`
	Html *content `json:"Html,omitempty"`
}

type messageHeader struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

// attachment carries RawContent as base64, which is how the REST API
// encodes blob fields.
type attachment struct {
	RawContent              string  `json:"RawContent"`
	FileName                string  `json:"FileName"`
	ContentType             string  `json:"ContentType,omitempty"`
	ContentDisposition      string  `json:"ContentDisposition"`
	ContentId               *string `json:"ContentId,omitempty"`
	ContentTransferEncoding string  `json:"ContentTransferEncoding"`
}

type messageTag struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

// sendEmailOutput is the success response body.
type sendEmailOutput struct {
	MessageId string `json:"MessageId"`
}
