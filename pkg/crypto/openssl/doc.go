// Package openssl decrypts payloads produced by "openssl enc".
//
// Encrypted ArcLink volumes are shipped in the OpenSSL salted container:
//
//	"Salted__" | 8 byte salt | CBC ciphertext with PKCS#5 padding
//
// Key and IV are derived from the passphrase and the salt, either with
// the legacy EVP_BytesToKey scheme (MD5, one round) or with PBKDF2.
// DES-CBC with EVP_BytesToKey is the default and matches what archive
// nodes produce.
package openssl
