package emit

// interpreterTemplate renders a standalone Node-targeted JS module whose
// dispatch loop mirrors runtime.Interpreter's opcode semantics line for
// line (see runtime/interpreter.go): same scope-chain lookup, same
// call-frame/try-frame shape, same CREATE_FUNCTION closure-capture
// behavior. Anti-analysis blocks are emitted only when their config flag
// is set.
const interpreterTemplate = `// {{.VMName}} — generated interpreter, do not edit by hand.
'use strict';

const crypto = require('crypto');

const {{.CodeVar}}_CIPHERTEXT = Buffer.from({{js .CiphertextB64}}, 'base64');
const {{.CodeVar}}_AESKEY = Buffer.from({{js .AESKeyB64}}, 'base64');
const {{.CodeVar}}_AESIV = Buffer.from({{js .AESIVB64}}, 'base64');
const {{.CodeVar}}_CHACHAKEY = Buffer.from({{js .ChaChaKeyB64}}, 'base64');
const {{.CodeVar}}_CHACHANONCE = Buffer.from({{js .ChaChaNonceB64}}, 'base64');
const {{.CodeVar}}_CIPHERID = {{js .CipherID}};
const {{.CodeVar}}_ORIGLEN = {{.OriginalLength}};
const {{.PoolVar}}_RAW = {{.PoolJSON}};

// {{.XorStreamFn}} implements the chacha20 block function as an
// unauthenticated keystream generator, matching cipher.xorStream: one
// 64-byte block at a time, XORed against successive 64-byte slices of
// data.
function {{.XorStreamFn}}(key, nonce, data) {
  function rotl(x, n) { return ((x << n) | (x >>> (32 - n))) >>> 0; }
  function quarterRound(s, a, b, c, d) {
    s[a] = (s[a] + s[b]) >>> 0; s[d] ^= s[a]; s[d] = rotl(s[d], 16);
    s[c] = (s[c] + s[d]) >>> 0; s[b] ^= s[c]; s[b] = rotl(s[b], 12);
    s[a] = (s[a] + s[b]) >>> 0; s[d] ^= s[a]; s[d] = rotl(s[d], 8);
    s[c] = (s[c] + s[d]) >>> 0; s[b] ^= s[c]; s[b] = rotl(s[b], 7);
  }
  function block(counter) {
    const constants = [0x61707865, 0x3320646e, 0x79622d32, 0x6b206574];
    const state = new Uint32Array(16);
    for (let i = 0; i < 4; i++) state[i] = constants[i];
    for (let i = 0; i < 8; i++) state[4 + i] = key.readUInt32LE(i * 4);
    state[12] = counter;
    for (let i = 0; i < 3; i++) state[13 + i] = nonce.readUInt32LE(i * 4);
    const working = Uint32Array.from(state);
    for (let round = 0; round < 10; round++) {
      quarterRound(working, 0, 4, 8, 12);
      quarterRound(working, 1, 5, 9, 13);
      quarterRound(working, 2, 6, 10, 14);
      quarterRound(working, 3, 7, 11, 15);
      quarterRound(working, 0, 5, 10, 15);
      quarterRound(working, 1, 6, 11, 12);
      quarterRound(working, 2, 7, 8, 13);
      quarterRound(working, 3, 4, 9, 14);
    }
    const out = Buffer.alloc(64);
    for (let i = 0; i < 16; i++) out.writeUInt32LE((working[i] + state[i]) >>> 0, i * 4);
    return out;
  }
  const out = Buffer.alloc(data.length);
  let counter = 0;
  for (let offset = 0; offset < data.length; offset += 64, counter++) {
    const ks = block(counter);
    const n = Math.min(64, data.length - offset);
    for (let i = 0; i < n; i++) out[offset + i] = data[offset + i] ^ ks[i];
  }
  return out;
}

// {{.DecodeFn}} reverses cipher.EncodeBytecode/EncodePool: strip the
// dead-code padding (if any), decrypt per cipher id, then walk the pool
// un-wrapping any chacha20-encoded string entries.
function {{.DecodeFn}}() {
  const sealed = {{.CodeVar}}_CIPHERTEXT.slice(0, {{.CodeVar}}_ORIGLEN);
  let plain;
  if ({{.CodeVar}}_CIPHERID === 'aes-cbc') {
    const decipher = crypto.createDecipheriv('aes-256-cbc', {{.CodeVar}}_AESKEY, {{.CodeVar}}_AESIV);
    plain = Buffer.concat([decipher.update(sealed), decipher.final()]);
  } else {
    const out = Buffer.alloc(sealed.length);
    for (let i = 0; i < sealed.length; i++) out[i] = sealed[i] ^ {{.CodeVar}}_AESKEY[i % {{.CodeVar}}_AESKEY.length];
    plain = out;
  }
  const pool = {{.PoolVar}}_RAW.map(function decodeEntry(entry) {
    if (entry.kind === 'encoded-string') {
      const raw = Buffer.from(entry.value.Value, 'base64');
      const dec = {{.XorStreamFn}}({{.CodeVar}}_CHACHAKEY, {{.CodeVar}}_CHACHANONCE, raw);
      return { tag: entry.tag, value: dec.toString('utf8') };
    }
    if (entry.kind === 'function-body') {
      return {
        tag: entry.tag,
        value: { code: Buffer.from(entry.value.code, 'base64'), pool: entry.value.pool.map(decodeEntry) },
      };
    }
    return { tag: entry.tag, value: entry.value };
  });
  return { code: plain, pool: pool };
}

// Value tags, matching constpool.Tag's numeric order.
const TAG_PRIMITIVE = 0, TAG_STRING = 1, TAG_IDENTIFIER = 2, TAG_OFFSET = 3, TAG_STRINGLIST = 4, TAG_FUNCTIONBODY = 5;

function {{.ScopeCtor}}(parent) {
  return { vars: new Map(), parent: parent };
}
function scopeGet(scope, name, globals) {
  for (let s = scope; s; s = s.parent) {
    if (s.vars.has(name)) return s.vars.get(name);
  }
  if (globals.vars.has(name)) return globals.vars.get(name);
  throw new Error('undefined variable: ' + name);
}
function scopeSet(scope, name, value, globals) {
  for (let s = scope; s; s = s.parent) {
    if (s.vars.has(name)) { s.vars.set(name, value); return; }
  }
  globals.vars.set(name, value);
}

function {{.HandlerTable}}(binaryOps, unaryOps, logicalOps) {
  return { binaryOps: binaryOps, unaryOps: unaryOps, logicalOps: logicalOps };
}

const BINARY_OPS = {
  '+': (a, b) => (typeof a === 'string' || typeof b === 'string') ? String(a) + String(b) : a + b,
  '-': (a, b) => a - b, '*': (a, b) => a * b, '/': (a, b) => a / b, '%': (a, b) => a % b,
  '===': (a, b) => a === b, '!==': (a, b) => a !== b, '==': (a, b) => a == b, '!=': (a, b) => a != b,
  '<': (a, b) => a < b, '<=': (a, b) => a <= b, '>': (a, b) => a > b, '>=': (a, b) => a >= b,
  '<<': (a, b) => a << b, '>>': (a, b) => a >> b, '>>>': (a, b) => a >>> b, '&': (a, b) => a & b, '|': (a, b) => a | b, '^': (a, b) => a ^ b,
  'in': (a, b) => (b !== null && typeof b === 'object') ? String(a) in b : false,
  'instanceof': (a, b) => a !== null && typeof a === 'object' && a.__ctor === b,
};
const UNARY_OPS = {
  '+': (a) => +a, '-': (a) => -a, '!': (a) => !a, '~': (a) => ~a, 'typeof': (a) => typeof a,
  'void': (a) => undefined, 'delete': (a) => true, 'nullish': (a) => a !== null && a !== undefined,
};
const LOGICAL_OPS = {
  '&&': (a, b) => a && b, '||': (a, b) => a || b, '??': (a, b) => a ?? b,
};

{{if or .DebugProtection .SelfDefending}}
// {{.DigestFn}} re-verifies the ciphertext's sha256 digest at call time,
// throwing a generic error with no diagnostic detail if it no longer
// matches what was recorded at emission time — a content-hash tamper
// oracle taken over the raw emitted ciphertext bytes.
function {{.DigestFn}}() {
  const got = crypto.createHash('sha256').update({{.CodeVar}}_CIPHERTEXT).digest('hex');
  if (got !== {{js .DigestHex}}) throw new Error('SecurityViolation');
}
let {{.ProtectedFn}}_calls = 0;
{{end}}
{{if .DebugProtection}}
const {{.TimerVar}}_debugProbe = setInterval(function () {
  const t0 = Date.now();
  debugger;
  if (Date.now() - t0 > 100) throw new Error('SecurityViolation');
}, 2000);
{{end}}

function {{.DispatchFn}}(code, pool, scope, globals) {
  const {{.StackVar}} = [];
  const callStack = [];
  const tryBlocks = [];
  let pc = 0;

  function poolValue(idx) { return pool[idx].value; }
  function readOperands(n) { const out = code.slice(pc, pc + n); pc += n; return out; }

  while (pc < code.length) {
    {{if or .DebugProtection .SelfDefending}}
    {{.ProtectedFn}}_calls++;
    if ({{.ProtectedFn}}_calls % 4096 === 0) {{.DigestFn}}();
    {{end}}
    const opStart = pc;
    const op = code[pc];
    pc++;
    try {
      switch (op) {
        case 0x01: { const operands = readOperands(1); {{.StackVar}}.push(poolValue(operands[0])); break; }
        case 0x02: { const operands = readOperands(1); {{.StackVar}}.push(scopeGet(scope, poolValue(operands[0]), globals)); break; }
        case 0x03: { const operands = readOperands(1); const v = {{.StackVar}}.pop(); scopeSet(scope, poolValue(operands[0]), v, globals); break; }
        case 0x04: { const operands = readOperands(1); const b = {{.StackVar}}.pop(); const a = {{.StackVar}}.pop(); {{.StackVar}}.push(BINARY_OPS[poolValue(operands[0])](a, b)); break; }
        case 0x05: { const operands = readOperands(1); const n = operands[0]; const args = {{.StackVar}}.splice({{.StackVar}}.length - n, n); const callee = {{.StackVar}}.pop(); {{.StackVar}}.push(callClosure(callee, args)); break; }
        case 0x06: { const v = {{.StackVar}}.pop(); return v; }
        case 0x07: { const operands = readOperands(1); pc = opStart + poolValue(operands[0]); continue; }
        case 0x08: { const operands = readOperands(1); const v = {{.StackVar}}.pop(); if (v) { pc = opStart + poolValue(operands[0]); continue; } break; }
        case 0x09: { const operands = readOperands(1); const v = {{.StackVar}}.pop(); if (!v) { pc = opStart + poolValue(operands[0]); continue; } break; }
        case 0x0A: { const operands = readOperands(3); {{.StackVar}}.push({ __closure: true, name: poolValue(operands[0]), params: poolValue(operands[1]), body: poolValue(operands[2]), definingScope: scope }); break; }
        case 0x0B: { {{.StackVar}}.push({}); break; }
        case 0x0C: { const operands = readOperands(1); const obj = {{.StackVar}}.pop(); {{.StackVar}}.push(obj[poolValue(operands[0])]); break; }
        case 0x0D: { const operands = readOperands(1); const v = {{.StackVar}}.pop(); const obj = {{.StackVar}}.pop(); obj[poolValue(operands[0])] = v; {{.StackVar}}.push(v); break; }
        case 0x0E: { {{.StackVar}}.pop(); break; }
        case 0x0F: { {{.StackVar}}.push({{.StackVar}}[{{.StackVar}}.length - 1]); break; }
        case 0x10: { const operands = readOperands(1); const a = {{.StackVar}}.pop(); {{.StackVar}}.push(UNARY_OPS[poolValue(operands[0])](a)); break; }
        case 0x11: { {{.StackVar}}.push([]); break; }
        case 0x12: { const v = {{.StackVar}}.pop(); const arr = {{.StackVar}}.pop(); arr.push(v); {{.StackVar}}.push(arr); break; }
        case 0x13: { const idx = {{.StackVar}}.pop(); const obj = {{.StackVar}}.pop(); {{.StackVar}}.push(obj[idx]); break; }
        case 0x14: { const v = {{.StackVar}}.pop(); const idx = {{.StackVar}}.pop(); const obj = {{.StackVar}}.pop(); obj[idx] = v; {{.StackVar}}.push(v); break; }
        case 0x15: { const operands = readOperands(1); const n = operands[0]; const args = {{.StackVar}}.splice({{.StackVar}}.length - n, n); const ctor = {{.StackVar}}.pop(); {{.StackVar}}.push(newInstance(ctor, args)); break; }
        case 0x16: { const operands = readOperands(1); const b = {{.StackVar}}.pop(); const a = {{.StackVar}}.pop(); {{.StackVar}}.push(LOGICAL_OPS[poolValue(operands[0])](a, b)); break; }
        case 0x19: { const operands = readOperands(2); tryBlocks.push({ catchPc: poolValue(operands[0]), finallyPc: poolValue(operands[1]) }); break; }
        case 0x1A: { tryBlocks.pop(); break; }
        case 0x1B: { const operands = readOperands(1); scopeSet(scope, poolValue(operands[0]), {{.StackVar}}[{{.StackVar}}.length - 1], globals); break; }
        case 0x1C: { const v = {{.StackVar}}.pop(); throw { __thrown: true, value: v }; }
        case 0x1E: { {{.StackVar}}.push(undefined); break; }
        case 0x1F: { {{.StackVar}}.push(null); break; }
        case 0x20: { {{.StackVar}}.push(scopeGet(scope, 'this', globals)); break; }
        case 0xFF: { break; }
        default: throw new Error('unknown opcode ' + op);
      }
    } catch (e) {
      if (e && e.__thrown && tryBlocks.length > 0) {
        const frame = tryBlocks[tryBlocks.length - 1];
        {{.StackVar}}.push(e.value);
        pc = frame.catchPc;
        continue;
      }
      throw e;
    }
  }
  return undefined;

  function callClosure(fn, args, thisVal) {
    if (typeof fn === 'function') return fn.apply(thisVal, args);
    const inner = {{.ScopeCtor}}(fn.definingScope);
    inner.vars.set('this', thisVal);
    fn.params.forEach(function (name, i) { inner.vars.set(name, args[i]); });
    return {{.DispatchFn}}(fn.body.code, fn.body.pool, inner, globals);
  }
  function newInstance(ctor, args) {
    const obj = Object.create(null);
    Object.defineProperty(obj, '__ctor', { value: ctor });
    const result = callClosure(ctor, args, obj);
    return (result && typeof result === 'object') ? result : obj;
  }
}

function run() {
  const decoded = {{.DecodeFn}}();
  const globals = {{.ScopeCtor}}(null);
  globals.vars.set('console', console);
  globals.vars.set('Math', Math);
  globals.vars.set('JSON', JSON);
  globals.vars.set('parseInt', parseInt);
  globals.vars.set('parseFloat', parseFloat);
  globals.vars.set('isNaN', isNaN);
  globals.vars.set('isFinite', isFinite);
  globals.vars.set('this', undefined);
  const topScope = {{.ScopeCtor}}(null);
  return {{.DispatchFn}}(decoded.code, decoded.pool, topScope, globals);
}

module.exports = { run: run };
if (require.main === module) run();
`
