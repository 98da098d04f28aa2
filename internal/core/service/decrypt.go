package service

// KeyStore resolves the passphrase of an archive (DCID).
type KeyStore interface {
	Lookup(dcid string) (string, bool)
}

// Decryptor turns an encrypted payload back into plain bytes. Failures
// should wrap domain.ErrDecryption.
type Decryptor interface {
	Decrypt(secret string, ciphertext []byte) ([]byte, error)
}
