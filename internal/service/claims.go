package service

import "github.com/golang-jwt/jwt/v5"

func jwtSubject(subject string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{Subject: subject}
}
