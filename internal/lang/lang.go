package lang

// Service implements domain.LanguageService from static configuration.
type Service struct {
	defaultLanguage string
}

func New(defaultLanguage string) *Service {
	if defaultLanguage == "" {
		defaultLanguage = "en"
	}
	return &Service{defaultLanguage: defaultLanguage}
}

func (s *Service) DefaultLanguage() string {
	return s.defaultLanguage
}
