// Package iocli is the terminal the console commands talk to.
package iocli

//go:generate moq -out io_mock.go . IO

// IO абстрагирует терминал консоли, чтобы команды можно было тестировать
// на строковых потоках вместо os.Stdin и os.Stdout.
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	Write(p []byte) (n int, err error)

	// ReadInput печатает prompt и читает одну строку
	ReadInput(prompt string) (string, error)
	// ReadPassword читает строку без эха на терминале
	ReadPassword(prompt string) (string, error)
	// Confirm задает вопрос да/нет; пустой ответ означает нет
	Confirm(prompt string) (bool, error)
}
