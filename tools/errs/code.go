package errs

import "net/http"

const (
	ServerInternalError = 500

	ArgsError        = 1001
	RecordNotFound   = 1004
	DuplicateKey     = 1009
	Forbidden        = 1403
	Unauthorized     = 1501
	TokenInvalid     = 1502
	TokenExpired     = 1503
	IdentityInactive = 1601
	ConnNotFound     = 1701
)

var (
	ErrInternalServer   = NewCodeError(ServerInternalError, "ServerInternalError")
	ErrArgs             = NewCodeError(ArgsError, "ArgsError")
	ErrRecordNotFound   = NewCodeError(RecordNotFound, "RecordNotFoundError")
	ErrDuplicateKey     = NewCodeError(DuplicateKey, "DuplicateKeyError")
	ErrForbidden        = NewCodeError(Forbidden, "ForbiddenError")
	ErrUnauthorized     = NewCodeError(Unauthorized, "UnauthorizedError")
	ErrTokenInvalid     = NewCodeError(TokenInvalid, "TokenInvalidError")
	ErrTokenExpired     = NewCodeError(TokenExpired, "TokenExpiredError")
	ErrIdentityInactive = NewCodeError(IdentityInactive, "IdentityInactiveError")
	ErrConnNotFound     = NewCodeError(ConnNotFound, "ConnNotFoundError")
)

func init() {
	_ = DefaultCodeRelation.Add(Unauthorized, TokenInvalid, TokenExpired)
	_ = DefaultCodeRelation.Add(Unauthorized, IdentityInactive)
	_ = DefaultCodeRelation.Add(RecordNotFound, ConnNotFound)
}

// HTTPStatus maps err onto the status code the REST handlers answer with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case ErrArgs.Is(err):
		return http.StatusBadRequest
	case ErrUnauthorized.Is(err):
		return http.StatusUnauthorized
	case ErrForbidden.Is(err):
		return http.StatusForbidden
	case ErrRecordNotFound.Is(err):
		return http.StatusNotFound
	case ErrDuplicateKey.Is(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
