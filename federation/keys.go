package federation

import (
	"encoding/base64"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/deemkeen/worknet/db"
	"github.com/deemkeen/worknet/domain"
	"github.com/deemkeen/worknet/util"
	"github.com/google/uuid"
)

// Jwk is a single RSA public key in JSON Web Key form.
type Jwk struct {
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// Jwks is the published key set.
type Jwks struct {
	Keys []Jwk `json:"keys"`
}

// EnsureServerKey makes sure a current server-wide signing key exists.
// Idempotent, safe to call on every startup.
func EnsureServerKey() (error, *domain.ServerKey) {
	database := db.GetDB()

	err, key := database.ReadCurrentServerKey()
	if err == nil && key != nil {
		return nil, key
	}

	log.Println("KeyManager: No current server key found, generating one")
	return RotateServerKey()
}

// RotateServerKey generates a fresh server key and supersedes all previous
// current keys. Old keys stay in the set (non-current, non-revoked) so
// signatures made with them remain verifiable through JWKS.
func RotateServerKey() (error, *domain.ServerKey) {
	keypair, err := util.GeneratePemKeypair()
	if err != nil {
		return fmt.Errorf("KeyManager: %w", err), nil
	}

	key := &domain.ServerKey{
		Id:            uuid.New(),
		PublicKeyPem:  keypair.Public,
		PrivateKeyPem: keypair.Private,
		IsCurrent:     true,
		CreatedAt:     time.Now(),
	}

	if err := db.GetDB().CreateServerKey(key); err != nil {
		return fmt.Errorf("KeyManager: failed to store server key: %w", err), nil
	}

	log.Printf("KeyManager: Server key %s is now current", key.Id)
	return nil, key
}

// EnsureActorKey enrolls a local actor with a signing key pair. If the
// actor already has one the call is a no-op reporting the existing actor
// id; both key halves are written in a single statement so a half-written
// record cannot occur.
func EnsureActorKey(actorId uuid.UUID) (error, uuid.UUID) {
	database := db.GetDB()

	err, actor := database.ReadActorById(actorId)
	if err != nil {
		return fmt.Errorf("KeyManager: unknown actor %s: %w", actorId, err), uuid.Nil
	}
	if actor.IsRemote {
		return fmt.Errorf("KeyManager: refusing to enroll remote actor %s", actorId), uuid.Nil
	}
	if actor.PublicKeyPem != "" && actor.PrivateKeyPem != "" {
		return nil, actor.Id
	}

	keypair, err := util.GeneratePemKeypair()
	if err != nil {
		return fmt.Errorf("KeyManager: %w", err), uuid.Nil
	}

	err, updated := database.UpdateActorKeys(actorId, keypair.Public, keypair.Private)
	if err != nil {
		return fmt.Errorf("KeyManager: failed to store actor key: %w", err), uuid.Nil
	}
	if !updated {
		// Lost the race against a concurrent enrollment, the existing key wins.
		log.Printf("KeyManager: Actor %s already enrolled concurrently", actorId)
	}

	return nil, actor.Id
}

// ExportJwks converts the stored SPKI PEM of every non-revoked server key
// to JWK form at request time. PEM stays the single source of truth, no
// JWK copy is ever persisted.
func ExportJwks() (error, *Jwks) {
	err, keys := db.GetDB().ReadActiveServerKeys()
	if err != nil {
		return fmt.Errorf("KeyManager: failed to read server keys: %w", err), nil
	}

	jwks := &Jwks{Keys: []Jwk{}}
	if keys == nil {
		return nil, jwks
	}

	for _, key := range *keys {
		jwk, err := PemToJwk(key.PublicKeyPem, key.Id.String())
		if err != nil {
			log.Printf("KeyManager: Skipping unparseable key %s: %v", key.Id, err)
			continue
		}
		jwks.Keys = append(jwks.Keys, *jwk)
	}

	return nil, jwks
}

// PemToJwk converts one SPKI PEM public key to an RSA JWK.
func PemToJwk(publicKeyPem string, kid string) (*Jwk, error) {
	pubKey, err := ParsePublicKey(publicKeyPem)
	if err != nil {
		return nil, err
	}

	return &Jwk{
		Kty: "RSA",
		Alg: "RS256",
		Use: "sig",
		Kid: kid,
		N:   base64.RawURLEncoding.EncodeToString(pubKey.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pubKey.E)).Bytes()),
	}, nil
}
