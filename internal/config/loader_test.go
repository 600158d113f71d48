package config

import "testing"

func TestExpandEnv(t *testing.T) {
	t.Setenv("STORYBIBLE_TEST_HOST", "db.internal")

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"set variable", "host: ${STORYBIBLE_TEST_HOST}", "host: db.internal"},
		{"set variable ignores default", "host: ${STORYBIBLE_TEST_HOST:fallback}", "host: db.internal"},
		{"unset with default", "port: ${STORYBIBLE_TEST_UNSET:5432}", "port: 5432"},
		{"unset with empty default", "key: ${STORYBIBLE_TEST_UNSET:}", "key: "},
		{"unset without default stays visible", "key: ${STORYBIBLE_TEST_UNSET}", "key: ${STORYBIBLE_TEST_UNSET}"},
		{"no placeholder", "plain: value", "plain: value"},
		{"multiple placeholders", "${STORYBIBLE_TEST_HOST}:${STORYBIBLE_TEST_UNSET:6379}", "db.internal:6379"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := expandEnv(tc.in); got != tc.want {
				t.Errorf("expandEnv(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
