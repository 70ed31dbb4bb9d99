// Copyright 2025 The ebnis-fe Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"errors"
)

// ErrNoToken is returned by TokenSource when the context carries no bearer
// token.
var ErrNoToken = errors.New("no bearer token in context")

type contextKey string

const (
	userIDKey contextKey = "user_id"
	tokenKey  contextKey = "token"
)

// SetUserID sets the signed-in user's id in the context
func SetUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID retrieves the signed-in user's id from the context
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok
}

// SetToken sets the bearer token in the context
func SetToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

// GetToken retrieves the bearer token from the context
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey).(string)
	return token, ok
}

// SetAuthContext sets both user id and bearer token in the context
func SetAuthContext(ctx context.Context, userID, token string) context.Context {
	ctx = SetUserID(ctx, userID)
	ctx = SetToken(ctx, token)
	return ctx
}

// TokenSource returns a token callback that reads the bearer token from the
// request context, for wiring into a transport client.
func TokenSource() func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		token, ok := GetToken(ctx)
		if !ok {
			return "", ErrNoToken
		}
		return token, nil
	}
}
