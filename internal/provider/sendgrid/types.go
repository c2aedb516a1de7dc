package sendgrid

// mailSendRequest is the body of POST /v3/mail/send.
type mailSendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             address           `json:"from"`
	ReplyTo          *address          `json:"reply_to,omitempty"`
	ReplyToList      []address         `json:"reply_to_list,omitempty"`
	Subject          string            `json:"subject,omitempty"`
	Content          []content         `json:"content,omitempty"`
	Attachments      []attachment      `json:"attachments,omitempty"`
	Headers          map[string]string `json:"headers,omitempty"`
	Categories       []string          `json:"categories,omitempty"`
	CustomArgs       map[string]string `json:"custom_args,omitempty"`
	SendAt           int64             `json:"send_at,omitempty"`
	TrackingSettings *trackingSettings `json:"tracking_settings,omitempty"`
}

// personalization addresses one envelope within the request. With merge
// data there is one per "to" recipient.
type personalization struct {
	To            []address         `json:"to,omitempty"`
	Cc            []address         `json:"cc,omitempty"`
	Bcc           []address         `json:"bcc,omitempty"`
	Substitutions map[string]string `json:"substitutions,omitempty"`
}

type address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type attachment struct {
	Content     string `json:"content"`
	Type        string `json:"type,omitempty"`
	Filename    string `json:"filename"`
	Disposition string `json:"disposition"`
	ContentID   string `json:"content_id,omitempty"`
}

type trackingSettings struct {
	ClickTracking *enableSetting `json:"click_tracking,omitempty"`
	OpenTracking  *enableSetting `json:"open_tracking,omitempty"`
}

type enableSetting struct {
	Enable bool `json:"enable"`
}
