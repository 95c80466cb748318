package types

// KeyPair is this device's key-exchange keypair for one room. Both halves are
// transport-safe text: base64 PKCS#8 for the private key and base64 PKIX for
// the public key. The private half never leaves the device.
type KeyPair struct {
	PrivateKey string `json:"private_key"`
	PublicKey  string `json:"public_key"`
}

// IsZero reports whether the keypair is unset.
func (k KeyPair) IsZero() bool { return k.PrivateKey == "" && k.PublicKey == "" }

// SecretTable maps a member to the symmetric secret shared with them. It is
// derived per session and never persisted.
type SecretTable map[UserID][]byte

// Peers returns the number of entries excluding self.
func (t SecretTable) Peers(self UserID) int {
	n := len(t)
	if _, ok := t[self]; ok {
		n--
	}
	return n
}

// PeerFailure records a member whose secret could not be derived.
type PeerFailure struct {
	UserID UserID
	Err    error
}
