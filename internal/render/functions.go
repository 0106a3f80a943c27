package render

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"net"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"superagent/internal/namegen"
)

// Func is one entry of the fixed generator-function library (§4.A).
type Func func(args *callArgs) (interface{}, error)

// library is the closed set of functions callable from `{{ }}` expressions.
var library = map[string]Func{
	"generate_password":      fnGeneratePassword,
	"generate_secret":        fnGenerateSecret,
	"random_string":          fnRandomString,
	"generate_uuid":          fnGenerateUUID,
	"generate_uuid_short":    fnGenerateUUIDShort,
	"base64_encode":          fnBase64Encode,
	"base64_decode":          fnBase64Decode,
	"hash_value":             fnHashValue,
	"random_port":            fnRandomPort,
	"get_valid_port":         fnGetValidPort,
	"env":                    fnEnv,
	"now":                    fnNow,
	"random_choice":          fnRandomChoice,
	"generate_animalname":    fnAnimalName,
	"generate_cosmicname":    fnCosmicName,
	"generate_mythologyname": fnMythologyName,
}

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const alphaOnly = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
const numericOnly = "0123456789"
const hexOnly = "0123456789abcdef"
const specialChars = "!@#$%^&*()-_=+"

func randRune(charset string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
	if err != nil {
		return 0, err
	}
	return charset[n.Int64()], nil
}

func randomStringFromCharset(length int, charset string) (string, error) {
	var sb strings.Builder
	for i := 0; i < length; i++ {
		c, err := randRune(charset)
		if err != nil {
			return "", err
		}
		sb.WriteByte(c)
	}
	return sb.String(), nil
}

func fnGeneratePassword(a *callArgs) (interface{}, error) {
	length := a.intArg("length", 24)
	includeSpecial := a.boolArg("include_special", true)
	charset := alphanumeric
	if includeSpecial {
		charset += specialChars
	}
	return randomStringFromCharset(length, charset)
}

func fnGenerateSecret(a *callArgs) (interface{}, error) {
	length := a.intArg("length", 32)
	buf := make([]byte, (length+1)/2)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return hex.EncodeToString(buf)[:length], nil
}

func fnRandomString(a *callArgs) (interface{}, error) {
	length := a.intArg("length", 16)
	charsetName := a.stringArg("charset", "alphanumeric")
	var charset string
	switch charsetName {
	case "alpha":
		charset = alphaOnly
	case "numeric":
		charset = numericOnly
	case "hex":
		charset = hexOnly
	default:
		charset = alphanumeric
	}
	return randomStringFromCharset(length, charset)
}

func fnGenerateUUID(a *callArgs) (interface{}, error) {
	return uuid.New().String(), nil
}

func fnGenerateUUIDShort(a *callArgs) (interface{}, error) {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:12], nil
}

func fnBase64Encode(a *callArgs) (interface{}, error) {
	s := a.positionalString(0, "")
	return base64.StdEncoding.EncodeToString([]byte(s)), nil
}

func fnBase64Decode(a *callArgs) (interface{}, error) {
	s := a.positionalString(0, "")
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func fnHashValue(a *callArgs) (interface{}, error) {
	s := a.positionalString(0, "")
	algo := a.stringArg("algo", "sha256")
	var sum []byte
	switch algo {
	case "sha256":
		h := sha256.Sum256([]byte(s))
		sum = h[:]
	case "sha512":
		h := sha512.Sum512([]byte(s))
		sum = h[:]
	case "md5":
		h := md5.Sum([]byte(s))
		sum = h[:]
	case "sha1":
		h := sha1.Sum([]byte(s))
		sum = h[:]
	default:
		return nil, fmt.Errorf("hash_value: unknown algo %q", algo)
	}
	return hex.EncodeToString(sum), nil
}

func fnRandomPort(a *callArgs) (interface{}, error) {
	min := a.intArg("min", 10000)
	max := a.intArg("max", 65535)
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max-min+1)))
	if err != nil {
		return nil, err
	}
	return min + int(n.Int64()), nil
}

func fnGetValidPort(a *callArgs) (interface{}, error) {
	start := a.intArg("start", 5432)
	maxAttempts := a.intArg("max_attempts", 100)
	for i := 0; i < maxAttempts; i++ {
		port := start + i
		addr := fmt.Sprintf("0.0.0.0:%d", port)
		l, err := net.Listen("tcp", addr)
		if err == nil {
			l.Close()
			return port, nil
		}
	}
	return nil, fmt.Errorf("get_valid_port: no free port found after %d attempts starting at %d", maxAttempts, start)
}

func fnEnv(a *callArgs) (interface{}, error) {
	name := a.positionalString(0, "")
	def := a.positionalString(1, "")
	if v, ok := os.LookupEnv(name); ok {
		return v, nil
	}
	return def, nil
}

func fnNow(a *callArgs) (interface{}, error) {
	format := a.positionalString(0, "%Y-%m-%d %H:%M:%S")
	return strftime(format, time.Now()), nil
}

func fnRandomChoice(a *callArgs) (interface{}, error) {
	opts := a.allPositionalStrings()
	if len(opts) == 0 {
		return "", nil
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(opts))))
	if err != nil {
		return nil, err
	}
	return opts[n.Int64()], nil
}

func styleArg(a *callArgs) namegen.Style {
	switch a.stringArg("style", "") {
	case "ubuntu":
		return namegen.StyleUbuntu
	case "docker":
		return namegen.StyleDocker
	case "full":
		return namegen.StyleFull
	default:
		return namegen.StyleNone
	}
}

func fnAnimalName(a *callArgs) (interface{}, error) {
	return namegen.Animal(a.stringArg("prefix", ""), styleArg(a)), nil
}

func fnCosmicName(a *callArgs) (interface{}, error) {
	return namegen.Cosmic(a.stringArg("prefix", ""), styleArg(a)), nil
}

func fnMythologyName(a *callArgs) (interface{}, error) {
	return namegen.Mythology(a.stringArg("prefix", ""), styleArg(a)), nil
}

// strftime implements the small subset of strftime directives the original's
// now() default format needs, avoiding a dependency on Python's format
// mini-language while keeping the same output shape.
func strftime(format string, t time.Time) string {
	replacer := strings.NewReplacer(
		"%Y", fmt.Sprintf("%04d", t.Year()),
		"%m", fmt.Sprintf("%02d", int(t.Month())),
		"%d", fmt.Sprintf("%02d", t.Day()),
		"%H", fmt.Sprintf("%02d", t.Hour()),
		"%M", fmt.Sprintf("%02d", t.Minute()),
		"%S", fmt.Sprintf("%02d", t.Second()),
	)
	return replacer.Replace(format)
}
