package handlers

import "context"

// contextKey тип ключей контекста запроса
type contextKey string

const (
	// OperatorIDKey ключ ID аутентифицированного оператора
	OperatorIDKey contextKey = "operator_id"
	// UsernameKey ключ username аутентифицированного оператора
	UsernameKey contextKey = "username"
)

// WithOperator кладет данные оператора из токена в контекст
func WithOperator(ctx context.Context, operatorID, username string) context.Context {
	ctx = context.WithValue(ctx, OperatorIDKey, operatorID)
	return context.WithValue(ctx, UsernameKey, username)
}

// GetOperatorID извлекает ID оператора из контекста
func GetOperatorID(ctx context.Context) (string, bool) {
	operatorID, ok := ctx.Value(OperatorIDKey).(string)
	return operatorID, ok
}

// GetUsername извлекает username оператора из контекста
func GetUsername(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(UsernameKey).(string)
	return username, ok
}

// operatorName username для логов; "" для анонимного запроса
func operatorName(ctx context.Context) string {
	username, _ := GetUsername(ctx)
	return username
}
