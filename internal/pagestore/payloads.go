package pagestore

import (
	"encoding/json"
	"fmt"
)

// The payloads below are pure, synchronous, side-effecting functions
// marshaled into the target page's JavaScript context and evaluated there.
// Each call is a single round trip; the page returns a JSON-serializable
// value and nothing else crosses the boundary.

// extractScript walks both storage areas key by key and returns
// {local, session} string maps. In-page exceptions yield empty maps.
const extractScript = `(() => {
  try {
    const local = {};
    const session = {};
    for (let i = 0; i < localStorage.length; i++) {
      const key = localStorage.key(i);
      if (key !== null) {
        const value = localStorage.getItem(key);
        if (value !== null) {
          local[key] = value;
        }
      }
    }
    for (let i = 0; i < sessionStorage.length; i++) {
      const key = sessionStorage.key(i);
      if (key !== null) {
        const value = sessionStorage.getItem(key);
        if (value !== null) {
          session[key] = value;
        }
      }
    }
    return { local: local, session: session };
  } catch (e) {
    return { local: {}, session: {} };
  }
})()`

// clearScript clears both storage areas and reports success as a boolean.
const clearScript = `(() => {
  try {
    localStorage.clear();
    sessionStorage.clear();
    return true;
  } catch (e) {
    return false;
  }
})()`

// injectScript builds the payload that clears both areas and writes every
// pair from the supplied maps. The maps are embedded as JSON literals.
func injectScript(local, session map[string]string) (string, error) {
	if local == nil {
		local = map[string]string{}
	}
	if session == nil {
		session = map[string]string{}
	}

	localJSON, err := json.Marshal(local)
	if err != nil {
		return "", fmt.Errorf("failed to encode localStorage data: %w", err)
	}
	sessionJSON, err := json.Marshal(session)
	if err != nil {
		return "", fmt.Errorf("failed to encode sessionStorage data: %w", err)
	}

	return fmt.Sprintf(`((local, session) => {
  try {
    localStorage.clear();
    sessionStorage.clear();
    for (const key of Object.keys(local)) {
      localStorage.setItem(key, local[key]);
    }
    for (const key of Object.keys(session)) {
      sessionStorage.setItem(key, session[key]);
    }
    return true;
  } catch (e) {
    return false;
  }
})(%s, %s)`, localJSON, sessionJSON), nil
}
