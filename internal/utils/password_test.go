package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
)

// PasswordTestSuite 密码工具测试套件
type PasswordTestSuite struct {
	suite.Suite
}

func (suite *PasswordTestSuite) TestHashFormat() {
	hash, err := HashPassword("s3cret-admin")
	suite.NoError(err)
	suite.True(strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=1,p=4$"))
	suite.Len(strings.Split(hash, "$"), 6)
}

func (suite *PasswordTestSuite) TestSaltMakesHashesUnique() {
	hash1, err1 := HashPassword("same")
	hash2, err2 := HashPassword("same")
	suite.NoError(err1)
	suite.NoError(err2)
	suite.NotEqual(hash1, hash2)
}

func (suite *PasswordTestSuite) TestVerify() {
	hash, _ := HashPassword("CorrectHorse")

	ok, err := VerifyPassword("CorrectHorse", hash)
	suite.NoError(err)
	suite.True(ok)

	ok, err = VerifyPassword("correcthorse", hash)
	suite.NoError(err)
	suite.False(ok)
}

func (suite *PasswordTestSuite) TestCustomParams() {
	p := PasswordParams{Time: 2, Memory: 16 * 1024, Threads: 1, KeyLen: 16, SaltLen: 8}
	hash, err := HashPasswordWith("pw", p)
	suite.NoError(err)
	suite.Contains(hash, "m=16384,t=2,p=1")

	ok, err := VerifyPassword("pw", hash)
	suite.NoError(err)
	suite.True(ok)
}

func (suite *PasswordTestSuite) TestEmptyPassword() {
	_, err := HashPassword("")
	suite.Error(err)
}

func (suite *PasswordTestSuite) TestMalformedHash() {
	for _, bad := range []string{
		"",
		"plain",
		"$bcrypt$v=19$m=1,t=1,p=1$a$b",
		"$argon2id$v=x$m=1,t=1,p=1$a$b",
		"$argon2id$v=19$m=1,t=1,p=1$!!$b",
	} {
		_, err := VerifyPassword("pw", bad)
		suite.Error(err, bad)
	}
}

func TestPasswordTestSuite(t *testing.T) {
	suite.Run(t, new(PasswordTestSuite))
}
