package runner

import "github.com/shirou/gopsutil/v4/process"

// killTree kills pid after recursively killing its descendants.
func killTree(pid int) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return
	}
	children, _ := p.Children()
	for _, c := range children {
		killTree(int(c.Pid))
	}
	_ = p.Kill()
}
