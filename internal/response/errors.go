package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrAdminDisabled      ErrCode = "ADMIN_DISABLED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden        ErrCode = "FORBIDDEN"
	ErrSessionTokenOnly ErrCode = "SESSION_TOKEN_ONLY"
	ErrAdminAccessOnly  ErrCode = "ADMIN_ACCESS_ONLY"
	ErrDeviceMismatch   ErrCode = "DEVICE_MISMATCH"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrInvalidDevice  ErrCode = "INVALID_DEVICE_ID"

	// ─── Start gate ────────────────────────────────────────────────────
	ErrInvalidInput   ErrCode = "INVALID_INPUT"
	ErrDeviceBlocked  ErrCode = "DEVICE_BLOCKED"
	ErrRetakeCooldown ErrCode = "RETAKE_COOLDOWN"
	ErrTestNotFound   ErrCode = "TEST_NOT_FOUND"
	ErrWrongGroup     ErrCode = "WRONG_GROUP"
	ErrTestClosed     ErrCode = "TEST_CLOSED"

	// ─── Session ───────────────────────────────────────────────────────
	ErrSessionNotFound    ErrCode = "SESSION_NOT_FOUND"
	ErrSessionFinished    ErrCode = "SESSION_FINISHED"
	ErrQuestionOutOfRange ErrCode = "QUESTION_OUT_OF_RANGE"
	ErrNotAllAnswered     ErrCode = "NOT_ALL_ANSWERED"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound       ErrCode = "NOT_FOUND"
	ErrResultNotFound ErrCode = "RESULT_NOT_FOUND"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Contraseña incorrecta."
	case ErrAdminDisabled:
		return "El acceso de administración no está configurado."
	case ErrTokenRequired:
		return "Se requiere un token de autenticación."
	case ErrTokenInvalid:
		return "El token de autenticación no es válido."
	case ErrTokenExpired:
		return "El token de autenticación ha caducado."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "No tienes permiso para acceder a este recurso."
	case ErrDeviceMismatch:
		return "La sesión pertenece a otro dispositivo."
	case ErrSessionTokenOnly:
		return "Este recurso solo está disponible durante una prueba."
	case ErrAdminAccessOnly:
		return "Este recurso está restringido a administradores."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "La validación falló. Revisa los datos enviados."
	case ErrInvalidPayload:
		return "El cuerpo de la solicitud no es válido."
	case ErrInvalidDevice:
		return "El identificador de dispositivo no es válido."

	// ─── Start gate ────────────────────────────────────────────────────
	case ErrInvalidInput:
		return "El nombre debe tener al menos 16 caracteres y el código al menos 8."
	case ErrDeviceBlocked:
		return "Este dispositivo está bloqueado para esta prueba."
	case ErrRetakeCooldown:
		return "Ya completaste esta prueba. Debes esperar antes de repetirla."
	case ErrTestNotFound:
		return "No existe ninguna prueba con ese código."
	case ErrWrongGroup:
		return "Esta prueba no está disponible para tu grupo."
	case ErrTestClosed:
		return "Esta prueba no está disponible en este momento."

	// ─── Session ───────────────────────────────────────────────────────
	case ErrSessionNotFound:
		return "La sesión no existe o ha caducado."
	case ErrSessionFinished:
		return "La prueba ya ha terminado."
	case ErrQuestionOutOfRange:
		return "La pregunta solicitada no existe."
	case ErrNotAllAnswered:
		return "Debes responder todas las preguntas antes de terminar."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Recurso no encontrado."
	case ErrResultNotFound:
		return "No se encontró ningún resultado con ese código."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Demasiadas solicitudes. Inténtalo de nuevo más tarde."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Se produjo un error interno del servidor."
	default:
		return "Se produjo un error inesperado."
	}
}
