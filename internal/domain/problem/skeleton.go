package problem

import "strings"

const skeletonBody = `#include <bits/stdc++.h>
using namespace std;

int main() {
  ios::sync_with_stdio(false);
  cin.tie(nullptr);
  return 0;
}
`

// Skeleton returns a minimal compilable source with the title as a leading
// comment. Line breaks in the title are flattened so the comment stays on
// one line.
func Skeleton(title string) string {
	t := strings.Join(strings.Fields(title), " ")
	return "// " + t + "\n" + skeletonBody
}
