package google

// GmailOAuthScopes are the Google OAuth scopes the triage pipeline needs.
// Full Gmail access covers reading threads, creating labels and modifying
// thread labels; the OpenID Connect scopes identify the authenticated user.
var GmailOAuthScopes = []string{
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",

	"https://mail.google.com/",
	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/gmail.modify",
	"https://www.googleapis.com/auth/gmail.labels",
}
