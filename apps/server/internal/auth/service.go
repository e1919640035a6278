package auth

// Service is the account and session contract used by the gateway and the HTTP handlers.
type Service interface {
	Guest(nickname, token string) (accountID uint64, sessionToken string, resumed bool, err error)
	Register(username, password string) (accountID uint64, sessionToken string, err error)
	Login(username, password string) (accountID uint64, sessionToken string, err error)
	ResolveSession(token string) (accountID uint64, displayName string, ok bool)
	DisplayName(accountID uint64) string
	Logout(token string)
	Close() error
}
