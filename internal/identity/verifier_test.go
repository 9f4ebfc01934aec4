package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/pulsemetrics/analytics-gateway/internal"
)

func TestIdentity(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Identity Module Suite")
}

var _ = ginkgo.Describe("Verifier", func() {
	const secret = "test-identity-secret-for-verification"

	var verifier *Verifier

	signToken := func(claims Claims, signingSecret string) string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := token.SignedString([]byte(signingSecret))
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		return signed
	}

	ginkgo.BeforeEach(func() {
		verifier = NewVerifier(secret)
	})

	ginkgo.Describe("Verify", func() {
		ginkgo.It("should return the identity for a valid token", func() {
			tokenString := signToken(Claims{
				UserID: "dana",
				Email:  "dana@example.com",
				RegisteredClaims: jwt.RegisteredClaims{
					ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
				},
			}, secret)

			id, err := verifier.Verify(tokenString)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(id.UserID).To(gomega.Equal("dana"))
			gomega.Expect(id.Claims.Email).To(gomega.Equal("dana@example.com"))
		})

		ginkgo.It("should fall back to the subject claim for the user id", func() {
			tokenString := signToken(Claims{
				RegisteredClaims: jwt.RegisteredClaims{
					Subject:   "subject-user",
					ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
				},
			}, secret)

			id, err := verifier.Verify(tokenString)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(id.UserID).To(gomega.Equal("subject-user"))
		})

		ginkgo.It("should reject an expired token", func() {
			tokenString := signToken(Claims{
				UserID: "dana",
				RegisteredClaims: jwt.RegisteredClaims{
					ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
				},
			}, secret)

			id, err := verifier.Verify(tokenString)

			gomega.Expect(err).To(gomega.MatchError(internal.ErrTokenExpired))
			gomega.Expect(id).To(gomega.BeNil())
		})

		ginkgo.It("should reject a token signed with a different secret", func() {
			tokenString := signToken(Claims{UserID: "dana"}, "some-other-secret-entirely-here")

			id, err := verifier.Verify(tokenString)

			gomega.Expect(err).To(gomega.HaveOccurred())
			gomega.Expect(id).To(gomega.BeNil())
		})

		ginkgo.It("should reject an empty token", func() {
			id, err := verifier.Verify("   ")

			gomega.Expect(err).To(gomega.MatchError(internal.ErrInvalidToken))
			gomega.Expect(id).To(gomega.BeNil())
		})

		ginkgo.It("should reject a token without any user id", func() {
			tokenString := signToken(Claims{
				RegisteredClaims: jwt.RegisteredClaims{
					ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
				},
			}, secret)

			id, err := verifier.Verify(tokenString)

			gomega.Expect(err).To(gomega.MatchError(internal.ErrInvalidToken))
			gomega.Expect(id).To(gomega.BeNil())
		})

		ginkgo.It("should reject garbage input", func() {
			id, err := verifier.Verify("not.a.token")

			gomega.Expect(err).To(gomega.HaveOccurred())
			gomega.Expect(id).To(gomega.BeNil())
		})
	})
})
