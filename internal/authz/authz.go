package authz

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleSeller    Role = "seller"
	RoleBuyer     Role = "buyer"
	// RoleSystem is the timer / scheduler.
	RoleSystem Role = "system"
)

type Capability string

const (
	CapSubmit      Capability = "submit"
	CapApprove     Capability = "approve"
	CapReject      Capability = "reject"
	CapChangeType  Capability = "change_type"
	CapApproveLive Capability = "approve_live"
	CapForceStatus Capability = "force_status"
	CapForceLive   Capability = "force_live"
	CapExpire      Capability = "expire"
	CapViewPrivate Capability = "view_private"
)

type capabilitySet map[Capability]struct{}

func setOf(caps ...Capability) capabilitySet {
	s := make(capabilitySet, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

var capabilities = map[Role]capabilitySet{
	RoleModerator: setOf(CapApprove, CapReject, CapViewPrivate),
	RoleAdmin: setOf(CapApprove, CapReject, CapChangeType, CapApproveLive,
		CapForceStatus, CapForceLive, CapExpire, CapViewPrivate),
	RoleSystem: setOf(CapForceLive, CapExpire),
	RoleSeller: setOf(CapSubmit),
	RoleBuyer:  setOf(),
}

func (r Role) Valid() bool {
	_, ok := capabilities[r]
	return ok
}

func (r Role) Can(c Capability) bool {
	_, ok := capabilities[r][c]
	return ok
}

// Actor is the authenticated caller as far as this service cares.
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) Can(c Capability) bool { return a.Role.Can(c) }

// System is the actor used by the timer and the sweep.
var System = Actor{ID: "scheduler", Role: RoleSystem}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrUnknownRole  = errors.New("unknown role")
)

type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// Verifier turns a bearer token issued by the identity provider into an Actor.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) Verify(token string) (Actor, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !claims.Role.Valid() || claims.Role == RoleSystem {
		return Actor{}, fmt.Errorf("%w: %q", ErrUnknownRole, claims.Role)
	}
	return Actor{ID: claims.Subject, Role: claims.Role}, nil
}

// Sign issues a token; used by tooling and tests.
func (v *Verifier) Sign(a Actor, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = a.ID
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Role: a.Role, RegisteredClaims: claims})
	return tok.SignedString(v.secret)
}
