// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/web"
)

type response struct {
	status int
	body   map[string]any
}

var _ = Describe("Credential scenarios over HTTP", func() {
	var server *httptest.Server

	call := func(req *http.Request) response {
		resp, err := server.Client().Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		var body map[string]any
		Expect(json.Unmarshal(data, &body)).To(Succeed())
		return response{status: resp.StatusCode, body: body}
	}

	register := func(username, password string) response {
		payload, err := json.Marshal(map[string]string{"username": username, "password": password})
		Expect(err).NotTo(HaveOccurred())
		req, err := http.NewRequest(http.MethodPost, server.URL+"/register", strings.NewReader(string(payload)))
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", "application/json")
		return call(req)
	}

	login := func(username, password string) response {
		q := url.Values{"username": {username}, "password": {password}}
		req, err := http.NewRequest(http.MethodGet, server.URL+"/login?"+q.Encode(), nil)
		Expect(err).NotTo(HaveOccurred())
		return call(req)
	}

	BeforeEach(func() {
		svc, err := auth.NewService(auth.NewMemoryStore(),
			auth.WithHasher(auth.NewArgon2idHasher(auth.Argon2Params{MemoryKiB: 1024, Iterations: 1, Parallelism: 1})))
		Expect(err).NotTo(HaveOccurred())
		server = httptest.NewServer(web.NewHandler(svc))
		DeferCleanup(server.Close)
	})

	Describe("registration", func() {
		It("rejects a short username", func() {
			resp := register("ab", "Strong@123")
			Expect(resp.status).To(Equal(http.StatusUnprocessableEntity))
			Expect(resp.body).To(HaveKeyWithValue("code", auth.CodeInvalidUsername))
			Expect(resp.body).To(HaveKeyWithValue("reason", string(auth.ReasonTooShort)))
		})

		It("rejects a short password", func() {
			resp := register("User1", "weak")
			Expect(resp.status).To(Equal(http.StatusUnprocessableEntity))
			Expect(resp.body).To(HaveKeyWithValue("code", auth.CodeWeakPassword))
			Expect(resp.body).To(HaveKeyWithValue("reason", string(auth.ReasonTooShort)))
		})

		It("rejects a second registration of the same username", func() {
			Expect(register("User1", "Strong@123").status).To(Equal(http.StatusOK))

			resp := register("User1", "Other@456")
			Expect(resp.status).To(Equal(http.StatusBadRequest))
			Expect(resp.body).To(HaveKeyWithValue("detail", "Username already exists"))
		})
	})

	Describe("login", func() {
		BeforeEach(func() {
			Expect(register("User2", "Strong@123").status).To(Equal(http.StatusOK))
		})

		It("accepts the registered password", func() {
			resp := login("User2", "Strong@123")
			Expect(resp.status).To(Equal(http.StatusOK))
			Expect(resp.body).To(HaveKeyWithValue("message", "Login successful!"))
		})

		It("rejects a wrong password", func() {
			resp := login("User2", "WrongPass1!")
			Expect(resp.status).To(Equal(http.StatusUnauthorized))
			Expect(resp.body).To(HaveKeyWithValue("code", auth.CodeInvalidPassword))
		})

		It("rejects an unknown username", func() {
			resp := login("Ghost", "Strong@123")
			Expect(resp.status).To(Equal(http.StatusNotFound))
			Expect(resp.body).To(HaveKeyWithValue("code", auth.CodeUnknownUser))
		})

		It("does not change state on failure", func() {
			for range 3 {
				Expect(login("User2", "WrongPass1!").status).To(Equal(http.StatusUnauthorized))
			}
			Expect(login("User2", "Strong@123").status).To(Equal(http.StatusOK))
		})
	})
})
