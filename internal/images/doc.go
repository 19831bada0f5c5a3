// Package images — каталог образов pipeline и операции с ними в runtime.
//
// Catalog хранит список необходимых образов (по умолчанию DefaultImages,
// переопределяется конфигурацией). Manager проверяет их наличие
// (docker images -q) и скачивает недостающие по одному, сообщая
// прогресс через callback.
package images
