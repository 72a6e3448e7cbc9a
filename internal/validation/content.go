package validation

import (
	"fmt"
	"regexp"
)

// KeyPattern описывает ключ записи контента: hero, pricing-table, post_2024_01.
// Точка запрещена, она разделяет сегменты пути поля.
var KeyPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// TopicPattern описывает имя топика (таблицы или страницы сайта)
var TopicPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,31}$`)

// ValidateKey проверяет ключ записи
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if !KeyPattern.MatchString(key) {
		return fmt.Errorf("invalid key %q: use 1-64 lowercase letters, digits, '-' or '_'", key)
	}
	return nil
}

// ValidateTopic проверяет имя топика
func ValidateTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("topic cannot be empty")
	}
	if !TopicPattern.MatchString(topic) {
		return fmt.Errorf("invalid topic %q: must start with a letter, up to 32 lowercase letters, digits, '-' or '_'", topic)
	}
	return nil
}
