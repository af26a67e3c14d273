package registry

import "errors"

// ErrNotFound is returned when a referenced registry, item, file, or
// export record does not exist.
var ErrNotFound = errors.New("not found")

// ErrSlugTaken is returned when creating a registry whose name normalizes
// to a slug already used by another registry of the same owner.
var ErrSlugTaken = errors.New("slug already in use for this owner")

// ErrInvalidName is returned when a registry name contains no
// alphanumeric characters and therefore slugifies to the empty string.
var ErrInvalidName = errors.New("name does not produce a usable slug")

// ErrNameTaken is returned when creating or renaming an item to a name
// already used within the same registry.
var ErrNameTaken = errors.New("item name already in use in this registry")

// ErrForbidden is returned when the requesting user is not the owner of
// the resource.
var ErrForbidden = errors.New("not the resource owner")
