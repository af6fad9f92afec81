package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Resource — версионируемый артефакт, разделяемый между шагами и tasks.
//
// Resource регистрируется один раз и дальше обновляется in-place
// с монотонно растущей версией. Registry — единственный владелец
// жизненного цикла Resource и его locks.
type Resource struct {
	// ID — уникальный идентификатор resource.
	ID uuid.UUID `json:"id"`

	// Name — имя resource (например, "customer-report").
	Name string `json:"name"`

	// Type — тег типа содержимого: "document", "dataset", "config", ...
	Type string `json:"type"`

	// Content — содержимое resource.
	Content []byte `json:"content,omitempty"`

	// Version — номер версии, начинается с 1.
	// Строго монотонный: каждый update увеличивает ровно на 1.
	Version int `json:"version"`

	// AccessLevel — "public" или "private".
	AccessLevel AccessLevel `json:"access_level"`

	// OwnerID — идентификатор владельца (capability holder).
	OwnerID string `json:"owner_id"`

	// Tags — теги для поиска.
	Tags []string `json:"tags,omitempty"`

	// Grants — выданные через share права: grantee → уровень.
	Grants map[string]GrantLevel `json:"grants,omitempty"`

	// Checksum — SHA-256 содержимого в hex.
	Checksum string `json:"checksum"`

	// Size — размер содержимого в байтах.
	Size int64 `json:"size"`

	// CreatedAt — время регистрации.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updated_at"`
}

// ResourceVersion — архивный снимок resource перед обновлением.
// Снимки неизменяемы.
type ResourceVersion struct {
	// ResourceID — ссылка на resource.
	ResourceID uuid.UUID `json:"resource_id"`

	// Version — номер заархивированной версии.
	Version int `json:"version"`

	// Content — содержимое на момент архивации.
	Content []byte `json:"content,omitempty"`

	// Checksum — SHA-256 содержимого.
	Checksum string `json:"checksum"`

	// Size — размер содержимого.
	Size int64 `json:"size"`

	// ArchivedAt — время архивации.
	ArchivedAt time.Time `json:"archived_at"`
}

// Lock — advisory эксклюзивный lock на resource с ограниченным временем жизни.
//
// Инвариант registry: на resource в любой момент существует не более
// одного живого (неистёкшего) lock. Истечение проверяется лениво:
// lock с ExpiresAt в прошлом считается отсутствующим.
type Lock struct {
	// ResourceID — ссылка на resource.
	ResourceID uuid.UUID `json:"resource_id"`

	// HolderID — идентификатор держателя lock.
	HolderID string `json:"holder_id"`

	// AcquiredAt — время захвата.
	AcquiredAt time.Time `json:"acquired_at"`

	// ExpiresAt — время истечения.
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired возвращает true, если lock истёк на момент now.
func (l *Lock) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// ComputeChecksum возвращает SHA-256 содержимого в hex.
func ComputeChecksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// CanRead возвращает true, если requester может читать resource.
func (r *Resource) CanRead(requesterID string) bool {
	if r.AccessLevel == AccessPublic {
		return true
	}
	if requesterID == r.OwnerID {
		return true
	}
	_, granted := r.Grants[requesterID]
	return granted
}

// IsOwner возвращает true, если requester — владелец resource.
func (r *Resource) IsOwner(requesterID string) bool {
	return requesterID == r.OwnerID
}
