package config

import (
	"io/fs"
	"time"
)

// -----------------------------------------------------------------------------
// Build Information
// -----------------------------------------------------------------------------

// Build variables are injected via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// UserAgent identifies the HTTP client.
var UserAgent = "Go-Contacts/" + Version

// -----------------------------------------------------------------------------
// Application Constants
// -----------------------------------------------------------------------------

const (
	AppName           = "Go Contacts"
	AppID             = "com.github.tartampluch.go-contacts"
	KeyringService    = "com.github.tartampluch.go-contacts"
	LocalhostBindAddr = "127.0.0.1"
	LogFileName       = "app.log"
)

// -----------------------------------------------------------------------------
// Exit Codes
// -----------------------------------------------------------------------------

const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
	ExitCodeUsage   = 2
)

// -----------------------------------------------------------------------------
// System & File Permissions
// -----------------------------------------------------------------------------

const (
	// FilePermUserRW represents -rw------- (Read/Write for owner only).
	FilePermUserRW fs.FileMode = 0600

	// DirPermUserRWX represents drwx------ (Read/Write/Exec for owner only).
	DirPermUserRWX fs.FileMode = 0700

	// ChannelBufferSize defines the standard buffer size for internal signaling channels.
	ChannelBufferSize = 1
)

// -----------------------------------------------------------------------------
// CLI Flags & Descriptions
// -----------------------------------------------------------------------------

const (
	FlagVersion      = "version"
	FlagDebug        = "debug"
	FlagDescVersion  = "Show application version and exit"
	FlagDescDebug    = "Enable debug logging to stderr"
	MsgVersionOutput = "%s version %s (%s/%s)\n"
	MsgUsage         = "usage: go-contacts [--debug] <command> [flags]\n\ncommands: %s\n"
)

// -----------------------------------------------------------------------------
// CLI Commands & Flags
// -----------------------------------------------------------------------------

const (
	CmdLogin          = "login"
	CmdLogout         = "logout"
	CmdRegister       = "register"
	CmdWhoAmI         = "whoami"
	CmdProfile        = "profile"
	CmdDeleteAccount  = "delete-account"
	CmdForgotPassword = "forgot-password"
	CmdResetPassword  = "reset-password"
	CmdVerifyEmail    = "verify-email"
	CmdList           = "list"
	CmdSearch         = "search"
	CmdAdd            = "add"
	CmdEdit           = "edit"
	CmdRemove         = "rm"
	CmdSuggest        = "suggest"
	CmdCEP            = "cep"
	CmdExport         = "export"
	CmdImport         = "import"
	CmdServe          = "serve"
	CmdTheme          = "theme"

	FlagConfirm   = "confirm"
	FlagOutput    = "o"
	FlagRefresh   = "refresh"
	FlagHash      = "hash"
	FlagExpires   = "expires"
	FlagSignature = "signature"

	ThemeToggle = "toggle"

	// FeedRefreshInterval is how often `serve` reloads the list from the backend.
	FeedRefreshInterval = 5 * time.Minute

	FormatContactLine = "%s\t%s\t%s\t%s\t%s"
	FormatStatusLine  = "%s [%s]"
	FormatAddressLine = "%s\t%s"
)

// -----------------------------------------------------------------------------
// Environment Variables
// -----------------------------------------------------------------------------

const (
	EnvAPIURL         = "CONTACTS_API_URL"
	EnvSessionBackend = "CONTACTS_SESSION_BACKEND"
	EnvRedisURL       = "CONTACTS_REDIS_URL"
	EnvFeedPort       = "CONTACTS_FEED_PORT"
	EnvLanguage       = "CONTACTS_LANG"
	EnvSearchDelayMS  = "CONTACTS_SEARCH_DELAY_MS"
	EnvSuggestDelayMS = "CONTACTS_SUGGEST_DELAY_MS"
)

// -----------------------------------------------------------------------------
// Persisted Client State
// -----------------------------------------------------------------------------

const (
	// StorageKeySession holds the JSON session record {user, token, expiresAt}.
	StorageKeySession = "app_auth_v1"

	// StorageKeyTheme holds the UI theme preference.
	StorageKeyTheme = "app_theme_v1"

	ThemeDark  = "dark"
	ThemeLight = "light"

	SessionBackendKeyring     = "keyring"
	SessionBackendPreferences = "preferences"
	SessionBackendRedis       = "redis"

	RedisKeyPrefix = "go-contacts:"

	// SessionDefaultTTL bounds persisted sessions without an expiry timestamp
	// on backends that can expire keys.
	SessionDefaultTTL = 30 * 24 * time.Hour
)

// -----------------------------------------------------------------------------
// Default Values & Business Logic
// -----------------------------------------------------------------------------

const (
	DefaultAPIURL         = "http://localhost:3000"
	DefaultSessionBackend = SessionBackendKeyring
	DefaultRedisURL       = "redis://localhost:6379/0"
	DefaultFeedPort       = "18081"
	DefaultLanguage       = "en"
	DefaultTheme          = ThemeDark

	// DefaultSearchDelay debounces contact full-text search.
	DefaultSearchDelay = 400 * time.Millisecond

	// DefaultSuggestDelay debounces free-text address suggestions.
	DefaultSuggestDelay = 450 * time.Millisecond

	// MinQueryLength gates remote lookups for short input.
	MinQueryLength = 3

	// PostalCodeLength is the number of digits of a Brazilian CEP.
	PostalCodeLength = 8

	// TempIDPrefix marks client-assigned ids awaiting a server id.
	TempIDPrefix = "temp_"

	// CoordScale is the fixed-point factor of integer encoded coordinates.
	CoordScale = 1_000_000

	// CoordScaledThreshold: absolute values above it are treated as fixed-point.
	CoordScaledThreshold = 1000

	// MinPasswordLength is enforced locally before registration.
	MinPasswordLength = 4

	CPFLength = 11

	// CollationLocale is used when ordering contacts by name.
	CollationLocale = "pt-BR"
)

// SupportedLanguages defines the list of available message languages.
var SupportedLanguages = []string{"en", "pt-BR"}

// -----------------------------------------------------------------------------
// Remote API Routes
// -----------------------------------------------------------------------------

const (
	RouteLogin          = "/auth/login"
	RouteRegister       = "/auth/register"
	RouteLogout         = "/auth/logout"
	RouteUser           = "/auth/user"
	RouteDeleteAccount  = "/auth/delete-account"
	RouteForgotPassword = "/auth/forgot"
	RouteResetPassword  = "/auth/reset"
	RouteVerifyEmail    = "/auth/email/verify"
	RouteContacts       = "/contacts"
	RouteContactSearch  = "/contacts/search"
	RouteAddresses      = "/addresses"
	RouteSuggest        = "/addresses/suggest"

	RouteFeed = "/contacts.vcf"
)

// -----------------------------------------------------------------------------
// Wire Field Names
// -----------------------------------------------------------------------------

// Canonical and historical field names found in backend records.
const (
	FieldID            = "id"
	FieldName          = "name"
	FieldCPF           = "cpf"
	FieldPhone         = "phone"
	FieldEmail         = "email"
	FieldZipCode       = "zipCode"
	FieldZipCodeSnake  = "zip_code"
	FieldState         = "state"
	FieldCity          = "city"
	FieldLocality      = "locality"
	FieldCidade        = "cidade"
	FieldNeighborhood  = "neighborhood"
	FieldAddress       = "address"
	FieldNumber        = "number"
	FieldComplement    = "complement"
	FieldLat           = "lat"
	FieldLng           = "lng"
	FieldLatitude      = "latitude"
	FieldLongitude     = "longitude"
	FieldLatitudeReal  = "latitude_real"
	FieldLongitudeReal = "longitude_real"

	FieldUF    = "uf"
	FieldQuery = "query"
	FieldQ     = "q"

	FieldData        = "data"
	FieldContacts    = "contacts"
	FieldSuggestions = "suggestions"
	FieldUser        = "user"
	FieldToken       = "token"
	FieldExpiration  = "expiration"
	FieldExpiresAt   = "expires_at"
	FieldExpiresCml  = "expiresAt"
	FieldPassword    = "password"
	FieldExp         = "exp"
	FieldMessage     = "message"
	FieldError       = "error"
	FieldSuccess     = "success"

	FieldPlaceID       = "placeId"
	FieldDescription   = "description"
	FieldMainText      = "mainText"
	FieldSecondaryText = "secondaryText"
	FieldTerms         = "terms"
	FieldValue         = "value"
	FieldCEP           = "cep"
	FieldLogradouro    = "logradouro"
	FieldBairro        = "bairro"
	FieldLocalidade    = "localidade"
)

// -----------------------------------------------------------------------------
// Standards: vCard
// -----------------------------------------------------------------------------

const (
	VCardXCPF          = "X-CPF"
	VCardXNumber       = "X-ADDRESS-NUMBER"
	VCardXNeighborhood = "X-NEIGHBORHOOD"
	VCardCountry       = "BR"
	VCardGeoURI        = "geo:%g,%g"
	VCardGeoPfx        = "geo:"
	ExtVCF             = ".vcf"

	// MaxVCardFailures bounds consecutive decode errors before an import aborts.
	MaxVCardFailures = 5
)

// -----------------------------------------------------------------------------
// Network & Timeouts
// -----------------------------------------------------------------------------

const (
	HTTPTimeout         = 30 * time.Second
	ShutdownTimeout     = 5 * time.Second
	ServerReadTimeout   = 10 * time.Second
	ServerWriteTimeout  = 30 * time.Second
	ServerIdleTimeout   = 60 * time.Second
	RedisDialTimeout    = 5 * time.Second
	RetryAfterSeconds   = "10"
	AllowedMethods      = "GET, HEAD"
	MaxHTTPResponseSize = 16 * 1024 * 1024 // 16MB
	SchemeHTTP          = "http"
	SchemeHTTPS         = "https"
	AddrSeparator       = ":"
)

// -----------------------------------------------------------------------------
// HTTP Headers & MIME Types
// -----------------------------------------------------------------------------

const (
	HeaderContentType     = "Content-Type"
	HeaderAccept          = "Accept"
	HeaderAuthorization   = "Authorization"
	HeaderCacheControl    = "Cache-Control"
	HeaderETag            = "ETag"
	HeaderLastModified    = "Last-Modified"
	HeaderRetryAfter      = "Retry-After"
	HeaderAllow           = "Allow"
	HeaderXContentType    = "X-Content-Type-Options"
	HeaderUserAgent       = "User-Agent"
	HeaderIfNoneMatch     = "If-None-Match"
	HeaderIfModifiedSince = "If-Modified-Since"

	MimeJSON            = "application/json"
	MimeVCard           = "text/vcard; charset=utf-8"
	MimeNoSniff         = "nosniff"
	CacheControlPrivate = "private, no-cache"
	BearerPrefix        = "Bearer "

	// FormatETag expects a string argument.
	FormatETag = `"%s"`
)

// -----------------------------------------------------------------------------
// Translation Keys (I18n)
// -----------------------------------------------------------------------------

const (
	TKeyLoginSuccess     = "login_success"          // Requires Name
	TKeyLogoutSuccess    = "logout_success"
	TKeyRegisterSuccess  = "register_success"
	TKeyWhoAmI           = "whoami"                 // Requires Name, Email
	TKeyNotAuthenticated = "not_authenticated"
	TKeySessionExpired   = "session_expired"
	TKeyProfileUpdated   = "profile_update_success" // Requires Name
	TKeyProfileError     = "profile_update_error"   // Requires Reason
	TKeyAccountDeleted   = "account_delete_success"
	TKeyAccountError     = "account_delete_error"   // Requires Reason
	TKeyResetRequested   = "reset_requested"
	TKeyResetDone        = "reset_done"
	TKeyEmailVerified    = "email_verified"
	TKeyContactCreated   = "contact_created"        // Requires Name
	TKeyContactUpdated   = "contact_updated"        // Requires Name
	TKeyContactRemoved   = "contact_removed"
	TKeyContactsCount    = "contacts_count"         // Requires Count (plural)
	TKeyContactsEmpty    = "contacts_empty"
	TKeyNoResults        = "no_results"
	TKeyInvalidCPF       = "invalid_cpf"
	TKeySyncPending      = "sync_pending"
	TKeySyncFailed       = "sync_failed"            // Requires Reason
	TKeyThemeCurrent     = "theme_current"          // Requires Theme
	TKeyFeedListening    = "feed_listening"         // Requires URL
	TKeyImported         = "contacts_imported"      // Requires Count (plural)
	TKeyExported         = "contacts_exported"      // Requires Count (plural)
)

// -----------------------------------------------------------------------------
// Error Messages (Technical/Logs)
// -----------------------------------------------------------------------------

const (
	ErrInvalidURL        = "invalid URL structure"
	ErrProtocol          = "unsupported protocol scheme (http/https only)"
	ErrRequestBuild      = "failed to build request"
	ErrRequestEncode     = "failed to encode request body"
	ErrNetwork           = "network error"
	ErrResponseDecode    = "failed to decode response body"
	ErrResponseRead      = "failed to read response body"
	ErrUnexpectedStatus  = "server returned unexpected status"
	ErrUnauthorized      = "unauthorized"
	ErrIncompleteLogin   = "invalid login response: missing token or user"
	ErrNotAuthenticated  = "not authenticated"
	ErrValidation        = "invalid data"
	ErrPasswordMismatch  = "password confirmation does not match"
	ErrPasswordShort     = "password is too short"
	ErrNameRequired      = "name is required"
	ErrEmailRequired     = "email is required"
	ErrPasswordRequired  = "password is required"
	ErrTokenRequired     = "reset token is required"
	ErrThemeUnknown      = "unknown theme"
	ErrInvalidCPF        = "invalid CPF"
	ErrContactNotFound   = "contact not found"
	ErrLoadContacts      = "failed to load contacts"
	ErrCreateContact     = "failed to create contact"
	ErrUpdateContact     = "failed to update contact"
	ErrRemoveContact     = "failed to delete contact"
	ErrSessionRead       = "failed to read persisted session"
	ErrSessionWrite      = "failed to persist session"
	ErrSessionDecode     = "failed to decode persisted session"
	ErrStorageNotFound   = "storage key not found"
	ErrRedisURL          = "failed to parse redis url"
	ErrRedisConnect      = "failed to connect to redis"
	ErrBackendUnknown    = "unsupported session backend"
	ErrVCardParse        = "failed to parse vCard stream"
	ErrVCardEncode       = "failed to encode vCard data"
	ErrServerStartup     = "server startup failed"
	ErrServerShutdown    = "server shutdown failed"
	ErrPortRequired      = "server port is required"
	ErrLogFile           = "failed to open log file"
	ErrCacheDir          = "could not determine user cache dir"
	ErrCreateDir         = "could not create app cache dir"
	ErrAppFailed         = "application failed unexpectedly"
	ErrWriteResp         = "failed to write response body"
	ErrLocalesAccess     = "failed to access embedded locales"
	ErrLocaleLoad        = "failed to load locale file"
	ErrUnknownCommand    = "unknown command"
	ErrMissingArgument   = "missing argument"
	ErrEngineClosed      = "query engine closed"
	ErrUsage             = "invalid usage"
	ErrVerifyEmail       = "email verification was not accepted"
	ErrPreferences       = "preferences storage is not available"
	ErrNothingToUpdate   = "no field to update"
	ErrSessionEnded      = "session ended before the operation settled"
	ErrCreatePending     = "contact has no server id yet"
)

// -----------------------------------------------------------------------------
// HTTP Server Responses
// -----------------------------------------------------------------------------

const (
	HTTPMsgInitializing = "Contacts feed initializing, please try again shortly."
	HTTPMsgMethodNotAll = "Method Not Allowed"
)

// -----------------------------------------------------------------------------
// Log Messages
// -----------------------------------------------------------------------------

const (
	MsgAppStarting     = "Starting application"
	MsgAppStop         = "Application stopped gracefully"
	MsgLogWarning      = "Warning: %s at %s: %v\n"
	MsgRequest         = "Remote request"
	MsgRequestFailed   = "Remote request failed"
	MsgUnauthorized    = "Server rejected credentials"
	MsgContactsLoaded  = "Contacts loaded"
	MsgContactsLoadErr = "Failed to fetch remote contacts"
	MsgReconcile       = "Contact list reconciled"
	MsgReconcileSkip   = "Reconciliation skipped (empty list)"
	MsgReconcileErr    = "Background reconciliation failed"
	MsgContactCreated  = "Contact confirmed by server"
	MsgCreateFailed    = "Remote create failed, keeping optimistic contact"
	MsgUpdateFailed    = "Remote update failed, local state kept"
	MsgRemoveFailed    = "Remote delete failed, local state kept"
	MsgStaleEpoch      = "Discarding result from previous session"
	MsgQueryDispatch   = "Dispatching lookup"
	MsgQueryStale      = "Discarding stale lookup result"
	MsgQueryGated      = "Lookup gated, no remote call"
	MsgSessionLoaded   = "Persisted session found"
	MsgSessionNone     = "No persisted session"
	MsgSessionExpired  = "Persisted session expired locally"
	MsgSessionVerified = "Session verified"
	MsgSessionInvalid  = "Session rejected by server"
	MsgSessionCleared  = "Session cleared"
	MsgSessionState    = "Session state changed"
	MsgLogoutIgnored   = "Remote logout failed (ignored)"
	MsgServerListen    = "HTTP server listening"
	MsgServerStop      = "Shutting down HTTP server..."
	MsgCacheUpdated    = "Feed cache updated"
	MsgLocaleSkip      = "Skipping non-locale file"
	MsgLocaleBadName   = "Skipping malformed locale filename"
	MsgLocaleLoaded    = "Locale loaded successfully"
	MsgTransMissing    = "Missing translation key"
	MsgSkippedCard     = "Skipping malformed vCard"
	MsgThemeInvalid    = "Ignoring invalid stored theme"
	MsgFeedUpdateErr   = "Failed to render contacts feed"
	MsgRefreshFailed   = "Periodic refresh failed"
	MsgCommand         = "Running command"
	MsgStorageOpened   = "Session storage opened"
)

// -----------------------------------------------------------------------------
// Structured Logging Keys (slog)
// -----------------------------------------------------------------------------

const (
	LogKeyComponent  = "component"
	LogKeyError      = "error"
	LogKeyURL        = "url"
	LogKeyMethod     = "method"
	LogKeyStatus     = "status_code"
	LogKeyFile       = "file"
	LogKeyLang       = "lang"
	LogKeyKey        = "key"
	LogKeyPort       = "port"
	LogKeyCount      = "count"
	LogKeyID         = "id"
	LogKeyTempID     = "temp_id"
	LogKeyUser       = "user"
	LogKeyState      = "state"
	LogKeyGeneration = "generation"
	LogKeyImmediate  = "immediate"
	LogKeyEngine     = "engine"
	LogKeyValue      = "value"
	LogKeyEpoch      = "epoch"
	LogKeyBackend    = "backend"
	LogKeySizeBytes  = "size_bytes"
	LogKeyETag       = "etag"
	LogKeyDuration   = "duration_ms"
	LogKeyCommand    = "command"

	// Startup Info Keys
	LogKeyBuild   = "build"
	LogKeyApp     = "app"
	LogKeyVersion = "version"
	LogKeyGoVer   = "go_version"
	LogKeyEnv     = "env"
	LogKeyOS      = "os"
	LogKeyArch    = "arch"
	LogKeyPID     = "pid"
)

// -----------------------------------------------------------------------------
// Log Components
// -----------------------------------------------------------------------------

const (
	CompMain     = "main"
	CompApp      = "app"
	CompGateway  = "gateway"
	CompStore    = "store"
	CompQuery    = "query"
	CompSession  = "session"
	CompServer   = "server"
	CompFeedback = "feedback"
	CompContact  = "contact"

	EngineSuggest = "address_suggestions"
	EngineSearch  = "contact_search"
)
