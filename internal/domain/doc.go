// Package domain содержит сущности Novoflow: Project, Task, Step, ImageDescriptor.
package domain
