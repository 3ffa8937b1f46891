// internal/app/system/csvutil/limits.go
package csvutil

// MaxRows caps the keys read from one file and the keys in one batch.
const MaxRows = 20000
