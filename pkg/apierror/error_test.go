package apierror

import "testing"

func TestError_Format(t *testing.T) {
	if got := NotFound("rule").Error(); got != "[404] rule not found" {
		t.Errorf("unexpected %q", got)
	}
	if got := WithDetail(502, "provider failed", "rate_limit").Error(); got != "[502] provider failed: rate_limit" {
		t.Errorf("unexpected %q", got)
	}
}

func TestError_Codes(t *testing.T) {
	cases := map[int]*Error{
		400: BadRequest("x"),
		401: Unauthorized("x"),
		409: Conflict("x"),
		423: Locked("x"),
		500: Internal("x"),
		502: BadGateway("x"),
	}
	for want, e := range cases {
		if e.Code != want {
			t.Errorf("expected %d, got %d", want, e.Code)
		}
	}
}
