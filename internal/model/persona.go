package model

// Persona 描述了网站助手的人设，既用于系统提示，也通过 /assistant-profile 暴露给前端。
type Persona struct {
	Name                   string       `json:"name"`
	Role                   string       `json:"role"`
	Personality            string       `json:"personality"`
	Expertise              []string     `json:"expertise"`
	Greeting               string       `json:"greeting"`
	Capabilities           Capabilities `json:"capabilities"`
	Rules                  PersonaRules `json:"rules"`
	NavigationInstructions string       `json:"navigationInstructions"`
}

// Capabilities 列出助手对外宣称的能力。
type Capabilities struct {
	EmailSupport    bool `json:"emailSupport"`
	LeadCollection  bool `json:"leadCollection"`
	Navigation      bool `json:"navigation"`
	WhatsAppSupport bool `json:"whatsappSupport"`
}

// PersonaRules 是离题处理相关的话术。
type PersonaRules struct {
	MaxOffTopicResponses int    `json:"maxOffTopicResponses"`
	OffTopicMessage      string `json:"offTopicMessage"`
	RefocusMessage       string `json:"refocusMessage"`
}
