package x86sim

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/raymyers/munch/pkg/x86"
)

// eax runs code in a fresh machine with the given globals and returns %eax.
func eax(globals map[string]int32, code ...string) int32 {
	m := machine(append(code, "ret")...)
	for k, v := range globals {
		m.SetGlobal(k, v)
	}
	Expect(m.Call("f")).To(Succeed())
	return m.Reg(x86.EAX)
}

var _ = Describe("Emulator", func() {
	Context("when decoding operands", func() {
		It("should resolve registers, memory and immediates", func() {
			m := machine("ret")
			m.regs[regEBP] = 0x1000
			m.SetGlobal("g", 5)

			l, err := m.operand("-8(%ebp)")
			Expect(err).NotTo(HaveOccurred())
			Expect(l).To(Equal(loc{kind: locMem, addr: 0x1000 - 8}))

			l, err = m.operand("(%ebp)")
			Expect(err).NotTo(HaveOccurred())
			Expect(l.addr).To(Equal(uint32(0x1000)))

			l, err = m.operand("$-3")
			Expect(err).NotTo(HaveOccurred())
			Expect(l).To(Equal(loc{kind: locImm, imm: -3}))

			l, err = m.operand("%st(1)")
			Expect(err).NotTo(HaveOccurred())
			Expect(l).To(Equal(loc{kind: locST, st: 1}))

			l, err = m.operand("g")
			Expect(err).NotTo(HaveOccurred())
			Expect(m.read(l)).To(Equal(int32(5)))
		})

		It("should reject malformed operands", func() {
			m := machine("ret")
			for _, s := range []string{"%foo", "x(%eax)", "4(%bogus)", "nowhere", "$nowhere"} {
				_, err := m.operand(s)
				Expect(err).To(HaveOccurred(), s)
			}
		})
	})

	Context("when doing integer arithmetic", func() {
		It("should compute with wrap-around", func() {
			Expect(eax(nil, "movl $2147483647, %eax", "addl $1, %eax")).To(Equal(int32(math.MinInt32)))
			Expect(eax(nil, "movl $-6, %eax", "imull $7, %eax")).To(Equal(int32(-42)))
			Expect(eax(nil, "movl $12, %eax", "movl $10, %ecx", "andl %ecx, %eax")).To(Equal(int32(8)))
			Expect(eax(nil, "movl $5, %eax", "negl %eax")).To(Equal(int32(-5)))
			Expect(eax(map[string]int32{"g": 3}, "leal 8(%esp), %eax", "subl %esp, %eax", "addl g, %eax")).To(Equal(int32(11)))
		})

		It("should shift by immediates and by %cl", func() {
			Expect(eax(nil, "movl $1, %eax", "sall $4, %eax")).To(Equal(int32(16)))
			Expect(eax(nil, "movl $-16, %eax", "sarl $2, %eax")).To(Equal(int32(-4)))
			Expect(eax(nil, "movl $-1, %eax", "movl $28, %ecx", "shrl %cl, %eax")).To(Equal(int32(15)))
			Expect(eax(nil, "movl $1, %eax", "movl $33, %ecx", "sall %cl, %eax")).To(Equal(int32(2)))
		})

		It("should divide toward zero", func() {
			Expect(eax(nil, "movl $-7, %eax", "movl $2, %ecx", "cltd", "idivl %ecx")).To(Equal(int32(-3)))
			Expect(eax(nil, "movl $-7, %eax", "movl $2, %ecx", "cltd", "idivl %ecx", "movl %edx, %eax")).To(Equal(int32(-1)))
		})

		It("should trap on bad division", func() {
			m := machine("movl $1, %eax", "movl $0, %ecx", "cltd", "idivl %ecx", "ret")
			Expect(m.Call("f")).To(MatchError(ContainSubstring("division by zero")))

			m = machine("movl $-2147483648, %eax", "movl $-1, %ecx", "cltd", "idivl %ecx", "ret")
			Expect(m.Call("f")).To(MatchError(ContainSubstring("division overflow")))
		})

		It("should exchange registers", func() {
			Expect(eax(nil, "movl $1, %eax", "movl $2, %ecx", "xchgl %ecx, %eax")).To(Equal(int32(2)))
		})
	})

	Context("when testing conditions", func() {
		DescribeTable("signed compare and set",
			func(a, b int32, cc string, want int32) {
				Expect(eax(map[string]int32{"a": a, "b": b},
					"movl a, %eax", "cmpl b, %eax", "set"+cc+" %al", "movzbl %al, %eax")).To(Equal(want))
			},
			Entry("lt", int32(-1), int32(2), "l", int32(1)),
			Entry("lt overflow", int32(math.MinInt32), int32(1), "l", int32(1)),
			Entry("ge", int32(2), int32(2), "ge", int32(1)),
			Entry("g", int32(2), int32(2), "g", int32(0)),
			Entry("le", int32(3), int32(2), "le", int32(0)),
			Entry("e", int32(4), int32(4), "e", int32(1)),
			Entry("ne", int32(4), int32(4), "ne", int32(0)),
		)

		It("should branch on test", func() {
			code := []string{"movl a, %ecx", "movl $1, %eax", "testl %ecx, %ecx", "jne out", "movl $0, %eax", "out:"}
			Expect(eax(map[string]int32{"a": 5}, code...)).To(Equal(int32(1)))
			Expect(eax(map[string]int32{"a": 0}, code...)).To(Equal(int32(0)))
		})
	})

	Context("when using the fpu", func() {
		var m *Machine

		run := func(code ...string) {
			m = machine(append(code, "ret")...)
			m.SetGlobalFloat("a", 10)
			m.SetGlobalFloat("b", 3)
			m.SetGlobalFloat("r", 0)
			Expect(m.Call("f")).To(Succeed())
		}

		DescribeTable("arithmetic",
			func(op string, want float64) {
				run("fldl a", "fldl b", op, "fstpl r")
				Expect(m.GlobalFloat("r")).To(Equal(want))
				Expect(m.FPUDepth()).To(BeZero())
			},
			Entry("faddp", "faddp %st, %st(1)", 13.0),
			Entry("fmulp", "fmulp %st, %st(1)", 30.0),
			Entry("fsubp", "fsubp %st, %st(1)", -7.0),
			Entry("fsubrp", "fsubrp %st, %st(1)", 7.0),
			Entry("fdivp", "fdivp %st, %st(1)", 0.3),
			Entry("fdivrp", "fdivrp %st, %st(1)", 10.0/3),
		)

		DescribeTable("memory operands",
			func(op string, want float64) {
				run("fldl a", op+" b", "fstpl r")
				Expect(m.GlobalFloat("r")).To(Equal(want))
			},
			Entry("faddl", "faddl", 13.0),
			Entry("fsubl", "fsubl", 7.0),
			Entry("fsubrl", "fsubrl", -7.0),
			Entry("fdivl", "fdivl", 10.0/3),
			Entry("fdivrl", "fdivrl", 0.3),
			Entry("fmull", "fmull", 30.0),
		)

		It("should load constants and integers", func() {
			run("fldz", "fld1", "faddp %st, %st(1)", "pushl $-4", "fildl (%esp)", "addl $4, %esp", "fchs", "faddp %st, %st(1)", "fstpl r")
			Expect(m.GlobalFloat("r")).To(Equal(5.0))
		})

		DescribeTable("fistpl rounds to even",
			func(v float64, want int32) {
				m = machine("fldl x", "subl $4, %esp", "fistpl (%esp)", "popl %eax", "ret")
				m.SetGlobalFloat("x", v)
				Expect(m.Call("f")).To(Succeed())
				Expect(m.Reg(x86.EAX)).To(Equal(want))
			},
			Entry("half down", 2.5, int32(2)),
			Entry("half up", 3.5, int32(4)),
			Entry("negative", -1.5, int32(-2)),
			Entry("out of range", 1e10, int32(math.MinInt32)),
			Entry("nan", math.NaN(), int32(math.MinInt32)),
		)

		DescribeTable("compare through the status word",
			func(code string, a, b float64, want int32) {
				m = machine("fldl a", "fldl b", code, "fnstsw %ax", "sahf",
					"movl $0, %eax", "jb less", "ret", "less:", "movl $1, %eax", "ret")
				m.SetGlobalFloat("a", a)
				m.SetGlobalFloat("b", b)
				Expect(m.Call("f")).To(Succeed())
				Expect(m.Reg(x86.EAX)).To(Equal(want))
				Expect(m.FPUDepth()).To(BeZero())
			},
			// fcompp compares st0 (b) with st1 (a)
			Entry("below", "fcompp", 10.0, 3.0, int32(1)),
			Entry("above", "fcompp", 3.0, 10.0, int32(0)),
			Entry("unordered", "fcompp", math.NaN(), 1.0, int32(1)),
		)

		It("should compare with memory and pop", func() {
			m = machine("fldl a", "fcompl b", "fnstsw %ax", "sahf", "sete %al", "movzbl %al, %eax", "ret")
			m.SetGlobalFloat("a", 2)
			m.SetGlobalFloat("b", 2)
			Expect(m.Call("f")).To(Succeed())
			Expect(m.Reg(x86.EAX)).To(Equal(int32(1)))
			Expect(m.FPUDepth()).To(BeZero())
		})

		It("should overflow after eight values", func() {
			code := []string{}
			for i := 0; i < 9; i++ {
				code = append(code, "fld1")
			}
			m = machine(append(code, "ret")...)
			Expect(m.Call("f")).To(MatchError(ContainSubstring("fpu stack overflow")))
		})

		It("should underflow on an empty stack", func() {
			m = machine("fchs", "ret")
			Expect(m.Call("f")).To(MatchError(ContainSubstring("underflow")))
			_, err := machine("ret").PopFloat()
			Expect(err).To(HaveOccurred())
		})
	})
})
