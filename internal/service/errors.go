// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrNoBody — пустое тело записи.
	ErrNoBody = errors.New("пустое тело записи")
	// ErrInvalidJSON — тело не является корректным JSON.
	ErrInvalidJSON = errors.New("тело не является корректным JSON")
	// ErrKeyNotFound — ключ отсутствует или истёк.
	ErrKeyNotFound = errors.New("ключ не найден")
	// ErrInvalidTTL — недопустимое значение TTL.
	ErrInvalidTTL = errors.New("TTL должен быть положительным")
	// ErrInvalidSnapshot — снапшот импорта не содержит записей.
	ErrInvalidSnapshot = errors.New("некорректный снапшот импорта")
)
